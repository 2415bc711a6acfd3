package features

// Features are the geometric measurements taken from one frame, in pixels
// and degrees. A field whose source keypoints were unavailable is zero.
type Features struct {
	ShoulderHipXDiff  float64 `json:"shoulder_hip_x_diff"`
	ShoulderHipYDiff  float64 `json:"shoulder_hip_y_diff"` // positive when shoulders are above hips
	ShoulderAngle     float64 `json:"shoulder_angle"`
	UpperBodyAngle    float64 `json:"upper_body_angle"` // angle of the torso from vertical
	NoseShoulderDistX float64 `json:"nose_shoulder_dist_x"`
	NoseShoulderDistY float64 `json:"nose_shoulder_dist_y"`
	NoseShoulderDist  float64 `json:"nose_shoulder_dist"`
	NoseToCenterY     float64 `json:"nose_to_center_y"` // same value as NoseShoulderDistY
}

// Metrics is one frame's Features plus how much of them could be measured.
type Metrics struct {
	Features
	Confidence float64 `json:"confidence"`
}

// Reference is a calibrated baseline posture. The zero value means no
// calibration has completed yet.
type Reference struct {
	Features
}

// IsZero reports whether r is the uncalibrated default.
func (r Reference) IsZero() bool {
	return r.Features == Features{}
}

// NumFields is the number of scalar fields in Features.
const NumFields = 8

// FieldNames lists the JSON names of the fields in Values order.
var FieldNames = [NumFields]string{
	"shoulder_hip_x_diff",
	"shoulder_hip_y_diff",
	"shoulder_angle",
	"upper_body_angle",
	"nose_shoulder_dist_x",
	"nose_shoulder_dist_y",
	"nose_shoulder_dist",
	"nose_to_center_y",
}

// Values returns the fields as an array so they can be processed uniformly.
func (f Features) Values() [NumFields]float64 {
	return [NumFields]float64{
		f.ShoulderHipXDiff,
		f.ShoulderHipYDiff,
		f.ShoulderAngle,
		f.UpperBodyAngle,
		f.NoseShoulderDistX,
		f.NoseShoulderDistY,
		f.NoseShoulderDist,
		f.NoseToCenterY,
	}
}

// FromValues is the inverse of Features.Values.
func FromValues(v [NumFields]float64) Features {
	return Features{
		ShoulderHipXDiff:  v[0],
		ShoulderHipYDiff:  v[1],
		ShoulderAngle:     v[2],
		UpperBodyAngle:    v[3],
		NoseShoulderDistX: v[4],
		NoseShoulderDistY: v[5],
		NoseShoulderDist:  v[6],
		NoseToCenterY:     v[7],
	}
}
