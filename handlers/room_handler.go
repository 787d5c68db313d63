package handlers

import (
	"net/http"

	"github.com/Dosada05/scrimhub/services"
	"github.com/go-chi/chi/v5"
)

type RoomHandler struct {
	roomService services.RoomService
}

func NewRoomHandler(rs services.RoomService) *RoomHandler {
	return &RoomHandler{roomService: rs}
}

// ListMessages godoc
// @Summary Сообщения комнаты
// @Description Удалённые сообщения видит только организатор с include_deleted=true.
// @Tags rooms
// @Produce json
// @Param roomID path int true "Room ID"
// @Param include_deleted query bool false "Показать удалённые (только организатор)"
// @Success 200 {object} map[string]interface{} "Сообщения по времени"
// @Failure 403 {object} map[string]string "Нет доступа"
// @Failure 404 {object} map[string]string "Комната не найдена"
// @Security BearerAuth
// @Router /rooms/{roomID}/messages [get]
func (h *RoomHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	includeDeleted, err := queryBool(r, "include_deleted")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	messages, err := h.roomService.ListMessages(r.Context(), roomID, actor, includeDeleted)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"messages": messages}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SendMessage godoc
// @Summary Отправить сообщение
// @Description Типы credentials и system доступны только организатору.
// @Tags rooms
// @Accept json
// @Produce json
// @Param roomID path int true "Room ID"
// @Param input body services.SendMessageInput true "Сообщение"
// @Success 201 {object} map[string]interface{} "Сообщение"
// @Failure 400 {object} map[string]string "Пустое сообщение"
// @Failure 403 {object} map[string]string "Не участник группы"
// @Failure 429 {object} map[string]string "Слишком много сообщений"
// @Security BearerAuth
// @Router /rooms/{roomID}/messages [post]
func (h *RoomHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SendMessageInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	message, err := h.roomService.SendMessage(r.Context(), roomID, input, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"message": message}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// EditMessage godoc
// @Summary Редактировать сообщение
// @Tags rooms
// @Accept json
// @Produce json
// @Param roomID path int true "Room ID"
// @Param messageID path string true "Message ID"
// @Param input body services.EditMessageInput true "Новый текст"
// @Success 200 {object} map[string]interface{} "Сообщение"
// @Failure 403 {object} map[string]string "Не автор"
// @Failure 404 {object} map[string]string "Сообщение не найдено"
// @Failure 409 {object} map[string]string "Сообщение удалено"
// @Security BearerAuth
// @Router /rooms/{roomID}/messages/{messageID} [patch]
func (h *RoomHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	messageID := chi.URLParam(r, "messageID")

	var input services.EditMessageInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	message, err := h.roomService.EditMessage(r.Context(), roomID, messageID, input.Content, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": message}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteMessage godoc
// @Summary Удалить сообщение
// @Description Мягкое удаление: сообщение скрывается, но остаётся для аудита.
// @Tags rooms
// @Param roomID path int true "Room ID"
// @Param messageID path string true "Message ID"
// @Success 204 "Сообщение удалено"
// @Failure 403 {object} map[string]string "Не автор"
// @Failure 404 {object} map[string]string "Сообщение не найдено"
// @Security BearerAuth
// @Router /rooms/{roomID}/messages/{messageID} [delete]
func (h *RoomHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	roomID, err := getIDFromURL(r, "roomID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	messageID := chi.URLParam(r, "messageID")

	if err := h.roomService.DeleteMessage(r.Context(), roomID, messageID, actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
