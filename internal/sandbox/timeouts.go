package sandbox

import "time"

const (
	InstallTimeout        = 300 * time.Second
	NonNextBuildTimeout   = 180 * time.Second
	NextBuildTimeout      = 120 * time.Second
	OpenNextBuildTimeout  = 60 * time.Second
	HeartbeatInterval     = 15 * time.Second
	LogTailInterval       = 5 * time.Second
	MaxLogTailChars       = 4000
	MaxLogTailLines       = 200
)
