package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/scrimhub/middleware"
	"github.com/Dosada05/scrimhub/realtime"
	"github.com/Dosada05/scrimhub/services"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // доступ проверяется по токену
	},
}

type WebSocketHandler struct {
	hub               *realtime.Hub
	roomService       services.RoomService
	tournamentService services.TournamentService
	logger            *slog.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, rs services.RoomService, ts services.TournamentService, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		hub:               hub,
		roomService:       rs,
		tournamentService: ts,
		logger:            logger,
	}
}

// ServeRoom godoc
// @Summary Подписка на события комнаты
// @Description WebSocket. Только участники группы и организатор. Токен можно передать в ?token=.
// @Tags realtime
// @Param roomID path int true "Room ID"
// @Param token query string false "JWT"
// @Success 101 "Switching Protocols"
// @Failure 403 {object} map[string]string "Нет доступа"
// @Failure 404 {object} map[string]string "Комната не найдена"
// @Router /ws/rooms/{roomID} [get]
func (h *WebSocketHandler) ServeRoom(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if _, err := h.roomService.AuthorizeRoom(r.Context(), roomID, actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	h.serve(w, r, realtime.RoomChannel(roomID), actor.UserID)
}

// ServeTournament godoc
// @Summary Подписка на события турнира
// @Description WebSocket. Изменения групп турнира.
// @Tags realtime
// @Param tournamentID path int true "Tournament ID"
// @Success 101 "Switching Protocols"
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Router /ws/tournaments/{tournamentID} [get]
func (h *WebSocketHandler) ServeTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if _, err := h.tournamentService.GetByID(r.Context(), tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	var userID int
	if actor, err := middleware.ActorFromContext(r.Context()); err == nil {
		userID = actor.UserID
	}
	h.serve(w, r, realtime.TournamentChannel(tournamentID), userID)
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, channel string, userID int) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту, так что здесь просто логируем.
		h.logger.Warn("websocket upgrade failed", slog.String("channel", channel), slog.Any("error", err))
		return
	}

	client := realtime.NewClient(h.hub, conn, channel, userID)
	if !h.hub.Subscribe(client) {
		_ = conn.Close()
		return
	}
	h.logger.Debug("websocket subscribed", slog.String("channel", channel), slog.Int("user_id", userID))

	go client.WritePump()
	go client.ReadPump()
}
