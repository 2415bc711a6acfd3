package keypoints

// Name identifies an anatomical landmark. Values follow the 17-point COCO
// vocabulary emitted by MoveNet/PoseNet style estimators.
type Name string

const (
	Nose          Name = "nose"
	LeftEye       Name = "left_eye"
	RightEye      Name = "right_eye"
	LeftEar       Name = "left_ear"
	RightEar      Name = "right_ear"
	LeftShoulder  Name = "left_shoulder"
	RightShoulder Name = "right_shoulder"
	LeftElbow     Name = "left_elbow"
	RightElbow    Name = "right_elbow"
	LeftWrist     Name = "left_wrist"
	RightWrist    Name = "right_wrist"
	LeftHip       Name = "left_hip"
	RightHip      Name = "right_hip"
	LeftKnee      Name = "left_knee"
	RightKnee     Name = "right_knee"
	LeftAnkle     Name = "left_ankle"
	RightAnkle    Name = "right_ankle"
)

// Names lists the vocabulary in estimator output order.
var Names = []Name{
	Nose, LeftEye, RightEye, LeftEar, RightEar,
	LeftShoulder, RightShoulder, LeftElbow, RightElbow,
	LeftWrist, RightWrist, LeftHip, RightHip,
	LeftKnee, RightKnee, LeftAnkle, RightAnkle,
}

// Valid reports whether n is part of the vocabulary.
func (n Name) Valid() bool {
	for _, v := range Names {
		if v == n {
			return true
		}
	}
	return false
}

// Keypoint is a single landmark in frame pixel coordinates (y grows downward).
type Keypoint struct {
	Name  Name    `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"` // detection confidence in [0,1]
}

// Frame is one pose estimate. An empty frame means no person was detected.
type Frame []Keypoint

// Get returns the first keypoint with the given name, or nil when the
// estimator did not emit it.
func (f Frame) Get(name Name) *Keypoint {
	for i := range f {
		if f[i].Name == name {
			return &f[i]
		}
	}
	return nil
}

// Detected reports whether the frame carries any keypoints at all.
func (f Frame) Detected() bool {
	return len(f) > 0
}

// CenterPoint is the centroid of the confident members of a keypoint group.
type CenterPoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}
