package config

const (
	defaultWritableRoot       = "~/.local/share/glossvideo/writable"
	defaultDatabasePath       = "~/.local/share/glossvideo/glossvideo.db"
	defaultLogDir             = "~/.local/share/glossvideo/logs"
	defaultVideoDir           = "glossvideo"
	defaultImageDir           = "glossimage"
	defaultTrashDir           = "glossvideo_trash"
	defaultQuarantineDir      = "failed_conversions"
	defaultImportDir          = "import_videos"
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultSmallVideoHeight   = 180
	defaultCanonicalContainer = "mp4"
	defaultCanonicalCodec     = "h264"
	defaultCanonicalExtension = ".mp4"
	defaultImportActor        = "import"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WritableRoot: defaultWritableRoot,
			DatabasePath: defaultDatabasePath,
			LogDir:       defaultLogDir,
		},
		Layout: Layout{
			VideoDir:      defaultVideoDir,
			ImageDir:      defaultImageDir,
			TrashDir:      defaultTrashDir,
			QuarantineDir: defaultQuarantineDir,
			ImportDir:     defaultImportDir,
		},
		Transcode: Transcode{
			FFmpegBinary:       defaultFFmpegBinary,
			FFprobeBinary:      defaultFFprobeBinary,
			SmallVideoHeight:   defaultSmallVideoHeight,
			CanonicalContainer: defaultCanonicalContainer,
			CanonicalCodec:     defaultCanonicalCodec,
			CanonicalExtension: defaultCanonicalExtension,
		},
		Import: Import{
			DefaultActor: defaultImportActor,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
