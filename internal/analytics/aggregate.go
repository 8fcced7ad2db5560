package analytics

import (
	"slices"
	"time"

	"github.com/tunelog-labs/tunelog/internal/history"
)

const (
	// sessionGap is the largest pause between consecutive sessions that
	// still counts as one sitting.
	sessionGap = 30 * time.Minute

	// maxArtistTitles caps the sample titles carried per artist.
	maxArtistTitles = 3

	dateKeyFormat = "2006-01-02"
)

// SongStat is one entry of the top-songs chart.
type SongStat struct {
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Album        string `json:"album"`
	PlayCount    int    `json:"playCount"`
	TotalMinutes int    `json:"totalMinutes"`
}

// ArtistStat is one entry of the top-artists chart.
type ArtistStat struct {
	Name         string   `json:"name"`
	PlayCount    int      `json:"playCount"`
	TotalMinutes int      `json:"totalMinutes"`
	TopTitles    []string `json:"topTitles"`
}

// DayBucket is one day of the daily listening series.
type DayBucket struct {
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
}

// HourBucket is one hour of the hourly distribution.
type HourBucket struct {
	Hour    int `json:"hour"`
	Minutes int `json:"minutes"`
}

// Summary is the headline view of a listening window.
type Summary struct {
	TotalMinutes  int `json:"totalMinutes"`
	TotalSongs    int `json:"totalSongs"`
	UniqueArtists int `json:"uniqueArtists"`

	// AverageSessionLength is the mean minute total per sitting, where
	// a sitting ends after a pause longer than 30 minutes.
	AverageSessionLength float64 `json:"averageSessionLength"`
	LongestSession       int     `json:"longestSession"`
}

type songKey struct {
	title  string
	artist string
}

// TopSongs ranks songs by play count, most played first. Songs tied on
// play count keep first-played order. Limit caps the result; zero or
// negative means no cap.
func TopSongs(sessions []history.PlaySession, w Window, now time.Time, limit int) []SongStat {
	scoped := w.filter(sessions, now)

	index := make(map[songKey]int)
	var stats []SongStat
	for _, s := range scoped {
		key := songKey{title: s.SongTitle, artist: s.ArtistName}
		i, ok := index[key]
		if !ok {
			i = len(stats)
			index[key] = i
			stats = append(stats, SongStat{
				Title:  s.SongTitle,
				Artist: s.ArtistName,
				Album:  s.AlbumTitle,
			})
		}
		stats[i].PlayCount++
		stats[i].TotalMinutes += s.Minutes()
	}

	slices.SortStableFunc(stats, func(a, b SongStat) int {
		return b.PlayCount - a.PlayCount
	})

	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

// TopArtists ranks artists by play count, most played first. Each
// entry carries up to three distinct titles in first-played order.
func TopArtists(sessions []history.PlaySession, w Window, now time.Time, limit int) []ArtistStat {
	scoped := w.filter(sessions, now)

	index := make(map[string]int)
	var stats []ArtistStat
	for _, s := range scoped {
		i, ok := index[s.ArtistName]
		if !ok {
			i = len(stats)
			index[s.ArtistName] = i
			stats = append(stats, ArtistStat{Name: s.ArtistName})
		}
		stats[i].PlayCount++
		stats[i].TotalMinutes += s.Minutes()
		if len(stats[i].TopTitles) < maxArtistTitles && !slices.Contains(stats[i].TopTitles, s.SongTitle) {
			stats[i].TopTitles = append(stats[i].TopTitles, s.SongTitle)
		}
	}

	slices.SortStableFunc(stats, func(a, b ArtistStat) int {
		return b.PlayCount - a.PlayCount
	})

	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

// DailyListening sums minutes per local calendar day for the most
// recent days, oldest first. Days without sessions appear with zero
// minutes.
func DailyListening(sessions []history.PlaySession, now time.Time, days int) []DayBucket {
	if days <= 0 {
		return nil
	}

	totals := make(map[string]int)
	for _, s := range sessions {
		totals[s.Timestamp.Local().Format(dateKeyFormat)] += s.Minutes()
	}

	buckets := make([]DayBucket, days)
	for i := range buckets {
		day := startOfDay(now.AddDate(0, 0, -(days - 1 - i)))
		key := day.Format(dateKeyFormat)
		buckets[i] = DayBucket{Date: key, Minutes: totals[key]}
	}
	return buckets
}

func startOfDay(t time.Time) time.Time {
	local := t.Local()
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
}

// HourlyDistribution sums minutes per local hour of day across the
// whole log. The result always has 24 buckets, hour 0 through 23.
func HourlyDistribution(sessions []history.PlaySession) []HourBucket {
	buckets := make([]HourBucket, 24)
	for i := range buckets {
		buckets[i].Hour = i
	}
	for _, s := range sessions {
		buckets[s.Timestamp.Local().Hour()].Minutes += s.Minutes()
	}
	return buckets
}

// SummaryStats computes the headline numbers for a window. An empty
// window yields the zero Summary.
func SummaryStats(sessions []history.PlaySession, w Window, now time.Time) Summary {
	scoped := w.filter(sessions, now)
	if len(scoped) == 0 {
		return Summary{}
	}

	var sum Summary
	artists := make(map[string]struct{})
	for _, s := range scoped {
		sum.TotalMinutes += s.Minutes()
		sum.TotalSongs++
		artists[s.ArtistName] = struct{}{}
	}
	sum.UniqueArtists = len(artists)

	lengths := clusterLengths(scoped)
	total := 0
	for _, n := range lengths {
		total += n
		if n > sum.LongestSession {
			sum.LongestSession = n
		}
	}
	sum.AverageSessionLength = float64(total) / float64(len(lengths))

	return sum
}

// clusterLengths splits sessions into sittings and returns the minute
// total of each. Sessions are sorted by timestamp first; a gap longer
// than sessionGap starts a new sitting.
func clusterLengths(sessions []history.PlaySession) []int {
	sorted := make([]history.PlaySession, len(sessions))
	copy(sorted, sessions)
	slices.SortFunc(sorted, func(a, b history.PlaySession) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	var lengths []int
	minutes, count := 0, 0
	var last time.Time
	for _, s := range sorted {
		if count > 0 && s.Timestamp.Sub(last) > sessionGap {
			lengths = append(lengths, minutes)
			minutes, count = 0, 0
		}
		minutes += s.Minutes()
		count++
		last = s.Timestamp
	}
	if count > 0 {
		lengths = append(lengths, minutes)
	}
	return lengths
}
