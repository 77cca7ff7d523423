package database

type Configuration struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
	Database string `validate:"required"`
	Host     string `validate:"required"`
	Port     uint   `validate:"required,gte=0"`
	SSLMode  string `yaml:"ssl-mode"`

	// Migrations is a directory of migration files. The embedded migrations
	// are applied when empty.
	Migrations string
}
