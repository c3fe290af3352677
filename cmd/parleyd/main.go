package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/parleychat/parley/server"
	"github.com/parleychat/parley/store"
)

func main() {
	// load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using the environment as-is")
	}

	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "parley.db"
	}

	db, err := store.New(path)
	if err != nil {
		logrus.Fatal(err)
	}
	defer db.Close()

	if err := db.EnsureDefaultChannel("general"); err != nil {
		logrus.Fatal(err)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logrus.Warn("JWT_SECRET not set, using a development default")
		secret = "parley-dev-secret"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	s := server.New(db, []byte(secret))
	logrus.Infof("listening on :%s", port)
	if err := http.ListenAndServe(":"+port, s.Serve()); err != nil {
		logrus.Fatal(err)
	}
}
