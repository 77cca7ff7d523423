package redisstore

type Configuration struct {
	Address  string `validate:"required"`
	Password string
	DB       int `validate:"gte=0"`
	Prefix   string
}
