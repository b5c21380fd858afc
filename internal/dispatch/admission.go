package dispatch

import "log/slog"

// CanAdmit reports whether another worker fits under the parallelism ceiling.
func CanAdmit(active, limit int) bool {
	return active < limit
}

// admissionGate wraps CanAdmit and logs only when the answer flips.
type admissionGate struct {
	logger  *slog.Logger
	blocked bool
}

func (g *admissionGate) allow(active, limit int) bool {
	ok := CanAdmit(active, limit)
	switch {
	case !ok && !g.blocked:
		g.logger.Info("parallelism limit reached, holding admissions", "active", active, "parallelism", limit)
	case ok && g.blocked:
		g.logger.Info("capacity available, resuming admissions", "active", active, "parallelism", limit)
	}
	g.blocked = !ok
	return ok
}
