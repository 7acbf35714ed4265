package store

import "strconv"

// LengthKey holds the index of the last frame written to the dataset.
const LengthKey = "cur_step"

const (
	episodePrefix     = "cur_episode_"
	framePrefix       = "rgb_static_"
	instructionPrefix = "inst_"
)

// EpisodeKey returns the key of the episode index recorded for a frame.
func EpisodeKey(frame int) string { return episodePrefix + strconv.Itoa(frame) }

// FrameKey returns the key of the encoded static camera image for a frame.
func FrameKey(frame int) string { return framePrefix + strconv.Itoa(frame) }

// InstructionKey returns the key of the language annotation for an episode.
func InstructionKey(episode int) string { return instructionPrefix + strconv.Itoa(episode) }
