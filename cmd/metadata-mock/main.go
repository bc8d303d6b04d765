package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	json "github.com/goccy/go-json"
)

type titleEntry struct {
	Title          string  `json:"title"`
	TitleType      *string `json:"titleType"`
	StartYear      *int    `json:"startYear"`
	RuntimeMinutes *int    `json:"runtimeMinutes"`
}

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "mock-metadata.json", "path to mock data file")
		verbose = flag.Bool("verbose", false, "log loaded entry count")
	)
	flag.Parse()

	file, err := os.ReadFile(*data)
	if err != nil {
		log.Fatalf("read mock data: %v", err)
	}

	var payload map[string]titleEntry
	if err := json.Unmarshal(file, &payload); err != nil {
		log.Fatalf("parse mock data: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metadata", func(w http.ResponseWriter, r *http.Request) {
		title := r.URL.Query().Get("title")
		entry, ok := payload[title]
		if !ok {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entry); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	addr := ":" + *port
	log.Printf("mock metadata service listening on %s", addr)
	if *verbose {
		log.Printf("loaded %d mock entries", len(payload))
	}
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
