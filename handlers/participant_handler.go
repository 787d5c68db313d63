package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/scrimhub/models"
	"github.com/Dosada05/scrimhub/services"
)

type ParticipantHandler struct {
	participantService services.ParticipantService
}

func NewParticipantHandler(ps services.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{participantService: ps}
}

// Register godoc
// @Summary Зарегистрировать команду на турнир
// @Description Бесплатный турнир: статус registered. Платный: pending_payment до оплаты.
// @Tags participants
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param input body services.RegisterParticipantInput true "Данные команды"
// @Success 201 {object} map[string]interface{} "Регистрация"
// @Failure 400 {object} map[string]string "Некорректные данные"
// @Failure 403 {object} map[string]string "Регистрация закрыта"
// @Failure 409 {object} map[string]string "Уже зарегистрирован или мест нет"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/participants [post]
func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.RegisterParticipantInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	participant, err := h.participantService.Register(r.Context(), tournamentID, input, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"participant": participant}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListParticipants godoc
// @Summary Список участников турнира
// @Tags participants
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Param status query string false "pending_payment | registered | cancelled"
// @Success 200 {object} map[string]interface{} "Участники"
// @Failure 404 {object} map[string]string "Турнир не найден"
// @Router /tournaments/{tournamentID}/participants [get]
func (h *ParticipantHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var status *models.ParticipantStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.ParticipantStatus(raw)
		switch s {
		case models.ParticipantPendingPayment, models.ParticipantRegistered, models.ParticipantCancelled:
			status = &s
		default:
			badRequestResponse(w, r, errors.New("invalid status query parameter"))
			return
		}
	}

	participants, err := h.participantService.ListParticipants(r.Context(), tournamentID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participants": participants}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RemoveParticipant godoc
// @Summary Отменить регистрацию
// @Description Организатор или сам участник. Участник также удаляется из своей группы.
// @Tags participants
// @Param tournamentID path int true "Tournament ID"
// @Param userID path int true "User ID"
// @Success 204 "Регистрация отменена"
// @Failure 403 {object} map[string]string "Нет прав"
// @Failure 404 {object} map[string]string "Регистрация не найдена"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/participants/{userID} [delete]
func (h *ParticipantHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.participantService.RemoveParticipant(r.Context(), tournamentID, userID, actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
