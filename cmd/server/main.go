package main

import (
	"log"
	"net/http"

	"idz2_regfalsi/internal/server"

	"github.com/caarlos0/env/v11"
)

type config struct {
	Addr      string `env:"REGFALSI_ADDR" envDefault:":8080"`
	StaticDir string `env:"REGFALSI_STATIC" envDefault:"static"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal("ошибка конфигурации: ", err)
	}

	router := server.NewRouter(cfg.StaticDir)
	log.Println("Сервер запущен на", cfg.Addr)
	log.Println("Static files served from:", cfg.StaticDir)
	log.Fatal(http.ListenAndServe(cfg.Addr, router))
}
