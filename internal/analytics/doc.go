// Package analytics summarizes a finished run: how much the speaker's hands
// and head moved, how much and how fast they spoke, and which topics
// dominated the context records.
package analytics
