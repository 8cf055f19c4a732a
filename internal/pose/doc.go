// Package pose turns video frames into body landmarks.
//
// The Extractor hands each frame to an Estimator (normally the posewire
// worker), converting it to the packed RGB layout estimators consume. A
// failed estimate degrades to an empty Result so the frame is still written.
// Landmark indices follow the 33-point MediaPipe topology; Connections lists
// the skeleton edges between them.
package pose
