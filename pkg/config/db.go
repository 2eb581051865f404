package config

type DB struct {
	DBType string `default:"sqlite" desc:"database type, empty disables the report database"`
	DSN    string `default:"carve.db" desc:"database file, relative to outdir"`
}
