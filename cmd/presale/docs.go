package main

//go:generate swag init -g cmd/presale/main.go -o docs

// @title           Presale Service API
// @version         0.1.0
// @description     Presale payment ingestion, leaderboard, snapshot and claim pre-checks.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
