package stellitebuild

import (
	"fmt"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/line/stellite/pkg/option"
	"github.com/line/stellite/pkg/stellitebuild/builderr"
	"github.com/line/stellite/pkg/stellitebuild/platform"
)

// Action is what a build invocation does.
type Action string

const (
	Build      Action = "build"
	Clean      Action = "clean"
	CleanBuild Action = "clean_build"
)

// Actions lists every action in usage order.
var Actions = []Action{Build, Clean, CleanBuild}

// ParseAction parses an action name.
func ParseAction(s string) (Action, error) {
	if slices.Contains(Actions, Action(s)) {
		return Action(s), nil
	}
	return "", errors.Newf("unknown action %q", s)
}

// The targets the project defines.
const (
	StelliteQuicServer = "stellite_quic_server"
	StelliteHTTPClient = "stellite_http_client"
	TridentHTTPClient  = "trident_http_client"
	ClientBinder       = "client_binder"
	QuicServer         = "quic_server"
)

// Targets lists the buildable targets.
var Targets = []string{StelliteQuicServer, StelliteHTTPClient, TridentHTTPClient, ClientBinder, QuicServer}

// DefaultTarget is built when no target is given.
const DefaultTarget = TridentHTTPClient

// IsExecutable reports whether target is an executable rather than a
// library. Executables are delivered as ninja built them.
func IsExecutable(target string) bool {
	return target == StelliteQuicServer || target == QuicServer
}

// headerDirs maps library targets to the project directory whose include
// directory is shipped with them.
var headerDirs = map[string]string{
	StelliteHTTPClient: "stellite",
	TridentHTTPClient:  "trident",
}

// Request is a single logical build request.
type Request struct {
	Target   string
	Platform platform.Platform
	Type     platform.ArtifactType

	// OutputRoot is where deliverables are collected.
	// It defaults to the configured output directory.
	OutputRoot string

	// ChromiumPath overrides the configured checkout location.
	ChromiumPath option.Option[string]
}

func (r Request) validate() error {
	if !slices.Contains(Targets, r.Target) {
		return errors.Newf("unknown target %q", r.Target)
	}
	if _, err := platform.Parse(string(r.Platform)); err != nil {
		return err
	}
	// Per-arch executables would overwrite each other in the output root;
	// only android collects outputs per architecture.
	if IsExecutable(r.Target) && r.Platform.MultiArch() && r.Platform != platform.Android {
		return &builderr.UnsupportedPlatformError{
			Platform: string(r.Platform),
			Reason:   fmt.Sprintf("executable target %s cannot be merged across architectures", r.Target),
		}
	}
	_, err := platform.ParseArtifactType(string(r.Type))
	return err
}

// Cell is one (platform, architecture) job of a build.
type Cell struct {
	Platform platform.Platform
	Arch     platform.Arch
	OutDir   string
}
