// Package video moves raw frames in and out of ffmpeg.
//
// Source decodes a file to packed rgb24 on ffmpeg's stdout and hands out one
// *image.RGBA per frame; Sink accepts frames and pipes them into an encoding
// ffmpeg process. Both own their subprocess and must be closed.
package video
