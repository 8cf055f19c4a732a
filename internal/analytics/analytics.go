package analytics

import (
	"sort"
	"strings"

	"cspanlens/internal/pose"
	"cspanlens/internal/topics"
	"cspanlens/internal/transcript"
)

// Tracked landmarks for movement variance, in report order.
var Tracked = []Tracker{
	{Name: "right_hand", Index: pose.RightWrist},
	{Name: "left_hand", Index: pose.LeftWrist},
	{Name: "head", Index: pose.Nose},
}

// Tracker names a landmark whose movement is measured.
type Tracker struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// Movement is the positional variance of one landmark.
type Movement struct {
	Tracker
	Samples int `json:"samples"`
	// Variance is the sum of the population variances of x and y.
	Variance float64 `json:"variance"`
}

// Speech aggregates the transcript.
type Speech struct {
	TotalSegments  int     `json:"total_segments"`
	TotalWords     int     `json:"total_words"`
	TotalDuration  float64 `json:"total_speech_duration"`
	WordsPerMinute float64 `json:"words_per_minute"`
}

// TopicShare counts the context records whose top label is Label.
type TopicShare struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// Report is the post-run summary. When Available is false the run produced
// no pose data or no transcript and only the counts are meaningful.
type Report struct {
	Available      bool         `json:"available"`
	VideoDuration  float64      `json:"video_duration"`
	FramesAnalyzed int          `json:"frames_analyzed"`
	SpeechSegments int          `json:"speech_segments"`
	Movement       []Movement   `json:"movement,omitempty"`
	Speech         Speech       `json:"speech"`
	Topics         []TopicShare `json:"topics,omitempty"`
}

// Summarize computes the report from the pose records and transcript
// segments of a run.
func Summarize(poseRecords []pose.FrameRecord, segments []transcript.Segment) Report {
	report := Report{
		FramesAnalyzed: len(poseRecords),
		SpeechSegments: len(segments),
	}
	if len(poseRecords) == 0 || len(segments) == 0 {
		return report
	}
	report.Available = true
	report.VideoDuration = poseRecords[len(poseRecords)-1].Timestamp
	report.Movement = MovementVariance(poseRecords)
	report.Speech = SpeechStats(segments)
	return report
}

// MovementVariance measures every tracked landmark across the frames that
// contain it. Fewer than two samples yield zero variance.
func MovementVariance(poseRecords []pose.FrameRecord) []Movement {
	out := make([]Movement, 0, len(Tracked))
	for _, tr := range Tracked {
		xs := make([]float64, 0, len(poseRecords))
		ys := make([]float64, 0, len(poseRecords))
		for _, rec := range poseRecords {
			lm, ok := rec.At(tr.Index)
			if !ok {
				continue
			}
			xs = append(xs, lm.X)
			ys = append(ys, lm.Y)
		}
		out = append(out, Movement{
			Tracker:  tr,
			Samples:  len(xs),
			Variance: variance(xs) + variance(ys),
		})
	}
	return out
}

// variance is the population variance of values.
func variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

// SpeechStats counts words and speaking time across segments.
func SpeechStats(segments []transcript.Segment) Speech {
	s := Speech{TotalSegments: len(segments)}
	for _, seg := range segments {
		s.TotalWords += len(strings.Fields(seg.Text))
		s.TotalDuration += seg.End - seg.Start
	}
	if s.TotalDuration > 0 {
		s.WordsPerMinute = float64(s.TotalWords) / s.TotalDuration * 60
	}
	return s
}

// TopicDistribution tallies the top label of each record, most frequent
// first with ties broken alphabetically.
func TopicDistribution(records []topics.Record) []TopicShare {
	counts := make(map[string]int)
	total := 0
	for _, rec := range records {
		label, _, ok := rec.Topics.Top()
		if !ok {
			continue
		}
		counts[label]++
		total++
	}
	if total == 0 {
		return nil
	}
	shares := make([]TopicShare, 0, len(counts))
	for label, n := range counts {
		shares = append(shares, TopicShare{Label: label, Count: n, Share: float64(n) / float64(total)})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Label < shares[j].Label
	})
	return shares
}
