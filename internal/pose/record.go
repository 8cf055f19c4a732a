package pose

// FrameRecord is the stored pose of one processed frame with a detection.
type FrameRecord struct {
	FrameIndex int        `json:"frame"`
	Timestamp  float64    `json:"timestamp"`
	Landmarks  []Landmark `json:"landmarks"`
}

// At returns landmark idx and whether the record has it.
func (r FrameRecord) At(idx int) (Landmark, bool) {
	if idx < 0 || idx >= len(r.Landmarks) {
		return Landmark{}, false
	}
	return r.Landmarks[idx], true
}
