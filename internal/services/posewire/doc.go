// Package posewire runs the external pose estimation worker and speaks its
// stdio protocol.
//
// The worker is started once per run and kept alive for every frame. Each
// request is a single JSON header line followed by the raw packed RGB pixels;
// each reply is a single JSON line carrying the 33 landmarks as
// [x, y, z, visibility] tuples and, when segmentation is enabled, a base64
// 8-bit foreground mask. The worker announces itself with a ready line before
// the first request and exits when stdin closes.
package posewire
