// Package download resolves a remote recording URL into a local mp4 with
// yt-dlp, naming the file after the download time.
package download
