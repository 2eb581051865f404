package config

import "time"

type (
	// Engine is the global section of the configuration file.
	Engine struct {
		LogLevel  string        `default:"info" desc:"log level: trace, debug, info, warn, error"`
		LogRotate LogRotate     `desc:"rotating log files"`
		OutDir    string        `default:"out" desc:"directory for repaired files"`
		Workers   int           `default:"4" desc:"fragments repaired in parallel"`
		PageSize  int           `default:"16777216" desc:"bytes per page"`
		Margin    int           `default:"1048576" desc:"bytes a page overlaps the next one"`
		Metrics   string        `desc:"listen address of the metrics endpoint, empty disables it"`
		Features  string        `default:"features.txt" desc:"feature file, relative to outdir"`
		Timeout   time.Duration `desc:"stop scanning after this long, 0 means no limit"`
		DB        DB            `desc:"repair report database"`
	}
	LogRotate struct {
		Path      string `desc:"log directory, empty disables rotation"`
		Size      uint64 `default:"1048576" desc:"bytes per log file"`
		MaxFiles  uint64 `default:"7" desc:"rotated files kept"`
		Formatter string `default:"2006-01-02T15" desc:"log file name layout"`
	}
)
