package main

type Config struct {
	Host                string `env:"HOST,default=0.0.0.0"`
	Port                int    `env:"PORT,default=3000"`
	LogLevel            string `env:"LOG_LEVEL,default=INFO"`
	PublicDir           string `env:"PUBLIC_DIR,default=./public"`
	HistoryFilepath     string `env:"HISTORY_FILEPATH,default=./chat_history.json"`
	CredentialsFilepath string `env:"CREDENTIALS_FILEPATH"`
	SendBufferSize      int    `env:"SEND_BUFFER_SIZE,default=16"`
	VapidPublicKey      string `env:"VAPID_PUBLIC_KEY"`
	VapidPrivateKey     string `env:"VAPID_PRIVATE_KEY"`
	VapidSubscriber     string `env:"VAPID_SUBSCRIBER,default=mailto:admin@localhost"`
}
