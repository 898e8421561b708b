// Command drawing-client is a terminal smoke client for the drawing service:
// it joins a session, draws one stroke, saves it, and reads the session's
// history back.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/kindlyrobotics/sketchsync/internal/history"
	"github.com/kindlyrobotics/sketchsync/internal/models"
	"github.com/kindlyrobotics/sketchsync/internal/syncer"
	"github.com/kindlyrobotics/sketchsync/internal/wsclient"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "drawing service websocket URL")
	session := flag.String("session", "", "session id to join (default: the server-assigned one)")
	username := flag.String("username", "cli", "roster username")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	client, err := wsclient.Dial(*addr, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer client.Close()

	client.On(models.EventUpdateUsers, func(data json.RawMessage) {
		var roster []models.Participant
		if err := json.Unmarshal(data, &roster); err != nil {
			return
		}
		log.Info().Int("participants", len(roster)).Msg("roster updated")
	})
	client.On(models.EventDrawing, func(data json.RawMessage) {
		var p models.DrawingPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return
		}
		log.Info().Str("from", p.From).Float64("x", p.Point.X).Float64("y", p.Point.Y).Msg("remote stroke point")
	})
	client.On(models.EventRemoved, func(json.RawMessage) {
		log.Warn().Msg("removed from the session by the admin")
		os.Exit(0)
	})

	assigned, err := client.SessionID(5 * time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("no session id from server")
	}
	sessionID := *session
	if sessionID == "" {
		sessionID = assigned
	}
	log.Info().Str("session", sessionID).Msg("joining")

	if err := client.Emit(models.EventJoin, models.JoinPayload{Username: *username}); err != nil {
		log.Fatal().Err(err).Msg("join failed")
	}
	if err := client.Emit(models.EventJoinSession, models.JoinSessionPayload{SessionID: sessionID}); err != nil {
		log.Fatal().Err(err).Msg("joinSession failed")
	}

	sync := syncer.New(client)
	sync.OnSaved(func(message string) {
		log.Info().Str("server", message).Msg("save confirmed")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fetched, err := sync.Reconcile(ctx, sessionID)
	if err != nil {
		log.Fatal().Err(err).Msg("initial fetch failed")
	}
	log.Info().Int("strokes", len(fetched.Strokes)).Int("textObjects", len(fetched.TextObjects)).Msg("history loaded")

	// Draw a short diagonal stroke and broadcast each point, then persist.
	undo := history.New()
	local := append([]models.StrokePoint{}, fetched.Strokes...)
	undo.RecordBeforeStroke(local)
	for i := 0; i < 5; i++ {
		point := models.StrokePoint{
			X:         float64(10 + i*5),
			Y:         float64(10 + i*5),
			Dragging:  i > 0,
			LineWidth: 3,
			Color:     "black",
		}
		local = append(local, point)
		if err := client.Emit(models.EventDrawing, models.DrawingPayload{SessionID: sessionID, Point: point}); err != nil {
			log.Fatal().Err(err).Msg("drawing emit failed")
		}
	}

	if err := sync.Save(sessionID, local, nil); err != nil {
		log.Fatal().Err(err).Msg("save failed")
	}

	// Leave a moment for the save confirmation and any remote traffic.
	time.Sleep(2 * time.Second)

	verify, err := sync.Fetch(context.Background(), sessionID)
	if err != nil {
		log.Fatal().Err(err).Msg("verify fetch failed")
	}
	log.Info().Int("strokes", len(verify.Strokes)).Msg("session history after save")
}
