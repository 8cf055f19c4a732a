// Package render draws the analysis overlay onto decoded frames.
//
// Rendering happens in place on an *image.RGBA in a fixed order: background
// isolation from the segmentation mask, a plain base layer of landmark dots
// and thin edges, the colour-coded skeleton over it, keypoint
// markers, the speech panel along the bottom edge and the title bar with the
// elapsed time. Text is drawn with the Go fonts through x/image.
package render
