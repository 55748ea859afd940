package report

import (
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/report/entity"
)

// Award prices a first submission from stored values only: a base amount,
// follower growth, posts and views, capped per report.
func Award(rules config.EnergyRules, metrics entity.Metrics, growth entity.Growth) int64 {
	n := rules.Base + rules.PerFollower*growth.Total() + rules.PerPost*metrics.TotalPosts()
	if rules.ViewsPerEnergy > 0 {
		n += metrics.TotalViews() / rules.ViewsPerEnergy
	}
	if rules.MaxPerReport > 0 && n > rules.MaxPerReport {
		n = rules.MaxPerReport
	}
	if n < 0 {
		n = 0
	}
	return n
}

// GrowthSince computes per-platform follower growth against the follower
// counts the previous report was first submitted with. A drop counts as zero;
// without a previous report growth is zero.
func GrowthSince(current entity.Metrics, previous *entity.Report) entity.Growth {
	var g entity.Growth
	if previous == nil {
		return g
	}
	for _, p := range entity.Platforms {
		cur, ok := current[p]
		if !ok {
			continue
		}
		prev, ok := previous.Baseline[p]
		if !ok {
			continue
		}
		if d := cur.Followers - prev; d > 0 {
			g.Set(p, d)
		}
	}
	return g
}
