package pose

// Landmark is one body keypoint in normalized image coordinates.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// NumLandmarks is the size of a full pose.
const NumLandmarks = 33

// Landmark indices used by rendering and analytics.
const (
	Nose          = 0
	LeftShoulder  = 11
	RightShoulder = 12
	LeftWrist     = 15
	RightWrist    = 16
	LeftHip       = 23
	RightHip      = 24
	LeftAnkle     = 27
	RightAnkle    = 28
)

// Connection is a skeleton edge between two landmark indices.
type Connection struct {
	From int
	To   int
}

// Connections is the MediaPipe pose skeleton.
var Connections = []Connection{
	{0, 1}, {1, 2}, {2, 3}, {3, 7}, {0, 4}, {4, 5}, {5, 6}, {6, 8}, {9, 10},
	{11, 12}, {11, 13}, {13, 15}, {15, 17}, {15, 19}, {15, 21}, {17, 19},
	{12, 14}, {14, 16}, {16, 18}, {16, 20}, {16, 22}, {18, 20},
	{11, 23}, {12, 24}, {23, 24},
	{23, 25}, {24, 26}, {25, 27}, {26, 28}, {27, 29}, {28, 30}, {29, 31}, {30, 32}, {27, 31}, {28, 32},
}

// Region groups skeleton edges for colouring.
type Region int

const (
	RegionOther Region = iota
	RegionArms
	RegionLegs
	RegionFace
	RegionTorso
)

func (r Region) String() string {
	switch r {
	case RegionArms:
		return "arms"
	case RegionLegs:
		return "legs"
	case RegionFace:
		return "face"
	case RegionTorso:
		return "torso"
	default:
		return "other"
	}
}

// RegionOf classifies an edge by the first matching rule, checked in order:
// arms (either end in 11..16 or 23..28), legs (23..32), face (0..10),
// torso (11..24). The overlapping ranges are intentional: the order decides.
func RegionOf(c Connection) Region {
	either := func(lo, hi int) bool {
		return (c.From >= lo && c.From <= hi) || (c.To >= lo && c.To <= hi)
	}
	switch {
	case either(11, 16) || either(23, 28):
		return RegionArms
	case either(23, 32):
		return RegionLegs
	case either(0, 10):
		return RegionFace
	case either(11, 24):
		return RegionTorso
	default:
		return RegionOther
	}
}

// Keypoint is a landmark marked with a dot; Labeled ones also get their name drawn.
type Keypoint struct {
	Index   int
	Name    string
	Labeled bool
}

// Keypoints lists the marked landmarks in drawing order.
var Keypoints = []Keypoint{
	{Nose, "Nose", true},
	{LeftShoulder, "L Shoulder", true},
	{RightShoulder, "R Shoulder", true},
	{LeftHip, "L Hip", false},
	{RightHip, "R Hip", false},
	{LeftWrist, "L Wrist", true},
	{RightWrist, "R Wrist", true},
	{LeftAnkle, "L Ankle", false},
	{RightAnkle, "R Ankle", false},
}
