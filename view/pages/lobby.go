// Package pages renders the server-side HTML pages.
package pages

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/mmuslimabdulj/goat-doodle/internal/domain"
)

// LobbyData is what the lobby page shows next to the create/join forms
type LobbyData struct {
	ActiveRooms int
	RecentGames []RecentGame
}

// RecentGame is one line of the finished games list
type RecentGame struct {
	RoomCode string
	Rounds   int
	Winner   string
	IsDraw   bool
}

const lobbyHead = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Doodle</title>
<link rel="stylesheet" href="/static/style.css">
</head>
<body>
<main class="lobby">
<h1>Doodle</h1>
`

const lobbyForms = `<form id="create-room" data-endpoint="/api/rooms">
<input name="display_name" maxlength="%d" placeholder="Your name (optional)">
<button type="submit">Create room</button>
</form>
<form id="join-room" data-endpoint="/api/rooms/{code}/join">
<input name="code" required placeholder="Room code">
<input name="display_name" placeholder="Your name (optional)">
<button type="submit">Join</button>
</form>
`

// Lobby renders the landing page.
func Lobby(data LobbyData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, lobbyHead); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, lobbyForms, domain.MaxDisplayNameLength); err != nil {
			return err
		}
		status := `<p class="rooms">` + strconv.Itoa(data.ActiveRooms) + ` rooms open</p>` + "\n"
		if _, err := io.WriteString(w, status); err != nil {
			return err
		}
		if err := recentGames(data.RecentGames).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</main>\n<script src=\"/static/app.js\"></script>\n</body>\n</html>\n")
		return err
	})
}

func recentGames(games []RecentGame) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(games) == 0 {
			return nil
		}
		if _, err := io.WriteString(w, "<ul class=\"recent\">\n"); err != nil {
			return err
		}
		for _, g := range games {
			outcome := "winner " + templ.EscapeString(g.Winner)
			if g.IsDraw {
				outcome = "draw"
			}
			line := "<li>" + templ.EscapeString(g.RoomCode) + " &middot; " +
				strconv.Itoa(g.Rounds) + " rounds &middot; " + outcome + "</li>\n"
			if _, err := io.WriteString(w, line); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</ul>\n")
		return err
	})
}
