package tracking

import (
	"math"
	"strings"

	"gogenie-storefront/internal/domain"
)

// Normalized is the canonical form of a backend status payload.
type Normalized struct {
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	// Raw is the status string that was canonicalized.
	Raw string `json:"-"`
	// Mapped is false when Raw matched no canonical key and Status fell back to pending.
	Mapped bool `json:"-"`
	// ProgressSupplied is true when the payload carried its own progress value.
	ProgressSupplied bool `json:"-"`
}

// NormalizeStatus converts a bare status string or a status object into a
// canonical status and a progress percentage. It never fails: anything that
// cannot be mapped degrades to pending with zero progress.
func NormalizeStatus(payload domain.StatusPayload) Normalized {
	raw := payload.Text
	progress := 0
	supplied := false
	if obj := payload.Object; obj != nil {
		raw = string(StatusPending)
		switch {
		case obj.Current != nil && strings.TrimSpace(*obj.Current) != "":
			raw = *obj.Current
		case obj.Status != nil && strings.TrimSpace(*obj.Status) != "":
			raw = *obj.Status
		}
		if obj.Progress != nil {
			progress = clampProgress(*obj.Progress)
			supplied = true
		}
	}

	canonical := Status(CanonicalizeStatusString(raw))
	if !canonical.IsValid() {
		return Normalized{Status: StatusPending, Progress: progress, Raw: raw, ProgressSupplied: supplied}
	}
	return Normalized{Status: canonical, Progress: progress, Raw: raw, Mapped: true, ProgressSupplied: supplied}
}

// InferProgress returns the percentage implied by the status position on the timeline.
func InferProgress(s Status) int {
	idx := s.Index()
	if idx <= 0 {
		return 0
	}
	return idx * 100 / (len(canonicalStatuses) - 1)
}

func clampProgress(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 100 {
		return 100
	}
	return int(math.Round(v))
}
