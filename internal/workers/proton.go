package workers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	gopsprocess "github.com/shirou/gopsutil/v3/process"

	"github.com/aaronsb/screentimed/internal/domain"
)

// protonParentNames identifies the wrapper processes Proton/Wine
// launches a game under. The actual game lives one level down, named
// by a Windows-style .exe path in the wrapper's argv or environment.
var protonParentNames = map[string]struct{}{
	"wine":        {},
	"wine64":      {},
	"wineserver":  {},
	"proton":      {},
	"proton_dist": {},
}

// ProtonWorker recognises Wine/Proton parent processes and extracts
// the wrapped game's .exe basename so distinct titles surface as
// distinct activity keys instead of collapsing into "wine" (spec §4.3).
type ProtonWorker struct{}

func NewProtonWorker() *ProtonWorker { return &ProtonWorker{} }

func (w *ProtonWorker) Name() string      { return "proton" }
func (w *ProtonWorker) IsAvailable() bool { return true }

func (w *ProtonWorker) Scan(ctx context.Context, user domain.User) ([]domain.DetectedActivity, error) {
	procs, err := gopsprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}

	var out []domain.DetectedActivity
	for _, p := range procs {
		uids, err := p.UidsWithContext(ctx)
		if err != nil || len(uids) == 0 || int(uids[0]) != user.SystemUID {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if _, isProton := protonParentNames[strings.ToLower(name)]; !isProton {
			continue
		}

		exe := extractGameExe(p, ctx)
		if exe == "" {
			continue
		}

		out = append(out, domain.DetectedActivity{
			Key:    exe,
			Source: w.Name(),
			PID:    int(p.Pid),
			Metadata: map[string]string{
				"wrapper": name,
			},
		})
	}
	return out, nil
}

// extractGameExe scans argv for a ".exe" token first, falling back to
// the WINEPREFIX-adjacent environment variables Proton sets when the
// command line only carries a launch script.
func extractGameExe(p *gopsprocess.Process, ctx context.Context) string {
	args, err := p.CmdlineSliceWithContext(ctx)
	if err == nil {
		for _, a := range args {
			if exe := exeBasename(a); exe != "" {
				return exe
			}
		}
	}

	env, err := p.EnvironWithContext(ctx)
	if err != nil {
		return ""
	}
	for _, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "SteamGameId", "SteamAppId", "PROTON_GAME_EXE":
			if exe := exeBasename(parts[1]); exe != "" {
				return exe
			}
		}
	}
	return ""
}

func exeBasename(s string) string {
	s = strings.ReplaceAll(s, "\\", "/")
	if !strings.HasSuffix(strings.ToLower(s), ".exe") {
		return ""
	}
	return filepath.Base(s)
}
