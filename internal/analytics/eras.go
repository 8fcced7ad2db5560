package analytics

import (
	"fmt"
	"slices"
	"time"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/tunelog-labs/tunelog/internal/history"
)

// EraConfig tunes era detection.
type EraConfig struct {
	// NumClusters is how many eras to partition listening days into.
	NumClusters int

	// MinDays drops eras with fewer listening days than this.
	MinDays int
}

// DefaultEraConfig returns the tuning used by the API.
func DefaultEraConfig() EraConfig {
	return EraConfig{NumClusters: 3, MinDays: 2}
}

// Era is a stretch of listening days with similar position and volume.
type Era struct {
	Name         string    `json:"name"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Days         int       `json:"days"`
	TotalMinutes int       `json:"totalMinutes"`
}

// listeningDay is one calendar day's listening total.
type listeningDay struct {
	day     time.Time
	minutes int
}

// dayPoint adapts a listening day for clustering. Coordinates are
// (position in range, volume), both scaled to [0, 1].
type dayPoint struct {
	day     time.Time
	minutes int
	coords  clusters.Coordinates
}

func (p dayPoint) Coordinates() clusters.Coordinates {
	return p.coords
}

func (p dayPoint) Distance(point clusters.Coordinates) float64 {
	return p.coords.Distance(point)
}

// DetectEras groups listening days into named eras via k-means.
// Too few days for a meaningful partition yields a single era spanning
// everything; so does a clustering failure.
func DetectEras(sessions []history.PlaySession, cfg EraConfig) []Era {
	days := listeningDays(sessions)
	if len(days) == 0 {
		return nil
	}
	if len(days) < cfg.NumClusters || len(days) < cfg.MinDays {
		return []Era{buildEra(days)}
	}

	km := kmeans.New()
	partitioned, err := km.Partition(observations(days), cfg.NumClusters)
	if err != nil {
		return []Era{buildEra(days)}
	}

	var eras []Era
	for _, c := range partitioned {
		if len(c.Observations) < cfg.MinDays {
			continue
		}
		members := make([]listeningDay, 0, len(c.Observations))
		for _, o := range c.Observations {
			p := o.(dayPoint)
			members = append(members, listeningDay{day: p.day, minutes: p.minutes})
		}
		slices.SortFunc(members, func(a, b listeningDay) int {
			return a.day.Compare(b.day)
		})
		eras = append(eras, buildEra(members))
	}
	if len(eras) == 0 {
		return []Era{buildEra(days)}
	}

	slices.SortFunc(eras, func(a, b Era) int {
		return a.Start.Compare(b.Start)
	})
	return eras
}

// listeningDays collapses sessions into per-day totals, oldest first.
func listeningDays(sessions []history.PlaySession) []listeningDay {
	totals := make(map[time.Time]int)
	for _, s := range sessions {
		totals[startOfDay(s.Timestamp)] += s.Minutes()
	}

	days := make([]listeningDay, 0, len(totals))
	for day, minutes := range totals {
		days = append(days, listeningDay{day: day, minutes: minutes})
	}
	slices.SortFunc(days, func(a, b listeningDay) int {
		return a.day.Compare(b.day)
	})
	return days
}

func observations(days []listeningDay) clusters.Observations {
	first := days[0].day
	span := days[len(days)-1].day.Sub(first)
	maxMinutes := 0
	for _, d := range days {
		if d.minutes > maxMinutes {
			maxMinutes = d.minutes
		}
	}

	obs := make(clusters.Observations, len(days))
	for i, d := range days {
		var position, volume float64
		if span > 0 {
			position = float64(d.day.Sub(first)) / float64(span)
		}
		if maxMinutes > 0 {
			volume = float64(d.minutes) / float64(maxMinutes)
		}
		obs[i] = dayPoint{day: d.day, minutes: d.minutes, coords: clusters.Coordinates{position, volume}}
	}
	return obs
}

func buildEra(days []listeningDay) Era {
	total := 0
	for _, d := range days {
		total += d.minutes
	}
	start := days[0].day
	end := days[len(days)-1].day
	return Era{
		Name:         formatEraName(intensityName(total, len(days)), start, end),
		Start:        start,
		End:          end,
		Days:         len(days),
		TotalMinutes: total,
	}
}

// intensityName labels an era by average minutes per listening day.
func intensityName(totalMinutes, days int) string {
	perDay := totalMinutes / days
	switch {
	case perDay >= 120:
		return "Heavy Rotation"
	case perDay >= 30:
		return "Steady Listening"
	}
	return "Quiet Stretch"
}

func formatEraName(band string, start, end time.Time) string {
	const layout = "Jan 2, 2006"
	if start.Equal(end) {
		return fmt.Sprintf("%s: %s", band, start.Format(layout))
	}
	return fmt.Sprintf("%s: %s - %s", band, start.Format(layout), end.Format(layout))
}
