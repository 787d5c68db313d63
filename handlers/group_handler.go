package handlers

import (
	"net/http"

	"github.com/Dosada05/scrimhub/services"
)

type GroupHandler struct {
	groupService services.GroupService
	roomService  services.RoomService
}

func NewGroupHandler(gs services.GroupService, rs services.RoomService) *GroupHandler {
	return &GroupHandler{groupService: gs, roomService: rs}
}

type autoGroupRequest struct {
	Size int `json:"size" validate:"gte=0"`
}

type renameGroupRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

// ListGroups godoc
// @Summary Группы турнира
// @Tags groups
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 200 {object} map[string]interface{} "Группы в порядке создания"
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Router /tournaments/{tournamentID}/groups [get]
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	groups, err := h.groupService.ListGroups(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"groups": groups}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AutoGroup godoc
// @Summary Автоматически разбить участников на группы
// @Description Участники со статусом registered делятся по порядку регистрации на группы размером size. Каждая группа получает комнату.
// @Tags groups
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param input body autoGroupRequest false "Размер группы (по умолчанию из турнира)"
// @Success 201 {object} map[string]interface{} "Созданные группы"
// @Failure 400 {object} map[string]string "Некорректный размер"
// @Failure 403 {object} map[string]string "Не организатор"
// @Failure 409 {object} map[string]string "Группы уже существуют"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/groups/auto [post]
func (h *GroupHandler) AutoGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input autoGroupRequest
	// тело необязательно
	if !decodeOptional(w, r, &input) {
		return
	}

	groups, err := h.groupService.AutoGroup(r.Context(), tournamentID, input.Size, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"groups": groups}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateGroup godoc
// @Summary Создать группу вручную
// @Tags groups
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param input body services.CreateGroupInput true "Имя и участники"
// @Success 201 {object} map[string]interface{} "Группа"
// @Failure 400 {object} map[string]string "Участник не зарегистрирован"
// @Failure 409 {object} map[string]string "Участник уже в другой группе"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/groups [post]
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.CreateGroupInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	group, err := h.groupService.CreateGroup(r.Context(), tournamentID, input, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"group": group}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetGroup godoc
// @Summary Получить группу
// @Tags groups
// @Produce json
// @Param groupID path int true "Group ID"
// @Success 200 {object} map[string]interface{} "Группа"
// @Failure 404 {object} map[string]string "Группа не найдена"
// @Router /groups/{groupID} [get]
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := getIDFromURL(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	group, err := h.groupService.GetGroup(r.Context(), groupID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"group": group}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RenameGroup godoc
// @Summary Переименовать группу
// @Tags groups
// @Accept json
// @Produce json
// @Param groupID path int true "Group ID"
// @Param input body renameGroupRequest true "Новое имя"
// @Success 200 {object} map[string]interface{} "Группа"
// @Failure 404 {object} map[string]string "Группа не найдена"
// @Security BearerAuth
// @Router /groups/{groupID} [patch]
func (h *GroupHandler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	groupID, err := getIDFromURL(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input renameGroupRequest
	if !decodeAndValidate(w, r, &input) {
		return
	}

	group, err := h.groupService.RenameGroup(r.Context(), groupID, input.Name, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"group": group}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteGroup godoc
// @Summary Удалить группу
// @Description Переписка комнаты архивируется, затем группа удаляется вместе с комнатой. Другие группы не затрагиваются.
// @Tags groups
// @Param groupID path int true "Group ID"
// @Success 204 "Группа удалена"
// @Failure 404 {object} map[string]string "Группа не найдена"
// @Security BearerAuth
// @Router /groups/{groupID} [delete]
func (h *GroupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	groupID, err := getIDFromURL(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.groupService.DeleteGroup(r.Context(), groupID, actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember godoc
// @Summary Убрать участника из группы
// @Tags groups
// @Produce json
// @Param groupID path int true "Group ID"
// @Param userID path int true "User ID"
// @Success 200 {object} map[string]interface{} "Группа"
// @Failure 404 {object} map[string]string "Группа не найдена"
// @Security BearerAuth
// @Router /groups/{groupID}/members/{userID} [delete]
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	groupID, err := getIDFromURL(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	group, err := h.groupService.RemoveMember(r.Context(), groupID, userID, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"group": group}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MoveMember godoc
// @Summary Перевести участника в группу
// @Description Участник удаляется из from_group_id и добавляется в groupID атомарно.
// @Tags groups
// @Accept json
// @Produce json
// @Param groupID path int true "Целевая группа"
// @Param input body services.MoveMemberInput true "Участник и исходная группа"
// @Success 200 {object} map[string]interface{} "Целевая группа"
// @Failure 400 {object} map[string]string "Группы разных турниров"
// @Failure 404 {object} map[string]string "Участник не найден ни в одной группе"
// @Security BearerAuth
// @Router /groups/{groupID}/members/move [post]
func (h *GroupHandler) MoveMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	groupID, err := getIDFromURL(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.MoveMemberInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	group, err := h.groupService.MoveMember(r.Context(), input.UserID, input.FromGroupID, groupID, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"group": group}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// EnsureRoom godoc
// @Summary Создать комнату группы, если её нет
// @Tags rooms
// @Produce json
// @Param groupID path int true "Group ID"
// @Success 200 {object} map[string]interface{} "Комната"
// @Failure 403 {object} map[string]string "Нет доступа"
// @Failure 404 {object} map[string]string "Группа не найдена"
// @Security BearerAuth
// @Router /groups/{groupID}/room [put]
func (h *GroupHandler) EnsureRoom(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	groupID, err := getIDFromURL(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	room, err := h.roomService.EnsureRoom(r.Context(), groupID, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"room": room}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteRoom godoc
// @Summary Удалить комнату группы
// @Description Переписка архивируется, группа остаётся.
// @Tags rooms
// @Param groupID path int true "Group ID"
// @Success 204 "Комната удалена"
// @Failure 404 {object} map[string]string "Комната не найдена"
// @Security BearerAuth
// @Router /groups/{groupID}/room [delete]
func (h *GroupHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	groupID, err := getIDFromURL(r, "groupID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.roomService.DeleteRoom(r.Context(), groupID, actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
