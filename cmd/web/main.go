package main

import "scriba_backend/internal/app"

func main() {
	app.Run()
}
