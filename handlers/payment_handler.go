package handlers

import (
	"net/http"

	"github.com/Dosada05/scrimhub/services"
)

type PaymentHandler struct {
	paymentService services.PaymentService
	// публичный ключ для checkout на клиенте
	keyID string
}

func NewPaymentHandler(ps services.PaymentService, keyID string) *PaymentHandler {
	return &PaymentHandler{paymentService: ps, keyID: keyID}
}

// CreateOrder godoc
// @Summary Создать заказ на оплату взноса
// @Description Для регистрации в статусе pending_payment. Открытый заказ возвращается повторно.
// @Tags payments
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 201 {object} map[string]interface{} "Платёж и key_id"
// @Failure 400 {object} map[string]string "Оплата не требуется"
// @Failure 404 {object} map[string]string "Регистрация не найдена"
// @Failure 503 {object} map[string]string "Платежи не настроены"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/payments/order [post]
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	payment, err := h.paymentService.CreateOrder(r.Context(), tournamentID, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"payment": payment, "key_id": h.keyID}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// VerifyPayment godoc
// @Summary Подтвердить оплату
// @Description Проверяет подпись шлюза и переводит регистрацию в registered.
// @Tags payments
// @Accept json
// @Produce json
// @Param input body services.VerifyPaymentInput true "Данные checkout"
// @Success 200 {object} map[string]interface{} "Платёж"
// @Failure 400 {object} map[string]string "Неверная подпись"
// @Failure 404 {object} map[string]string "Заказ не найден"
// @Security BearerAuth
// @Router /payments/verify [post]
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}

	var input services.VerifyPaymentInput
	if !decodeAndValidate(w, r, &input) {
		return
	}

	payment, err := h.paymentService.VerifyPayment(r.Context(), input, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"payment": payment}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
