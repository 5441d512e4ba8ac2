package api

import (
	"errors"
	"net/http"

	"github.com/nishchith-m10/fleet-control-plane/internal/rollback"
)

// EmergencyRollback обрабатывает POST /api/v1/rollback.
//
// Возвращает 202: откат инициирован, задачи поставлены, завершение
// асинхронно. В теле — размер scope и оценка времени.
func (h *Handler) EmergencyRollback(w http.ResponseWriter, r *http.Request) {
	var req rollback.Request
	if !DecodeBody(w, r, &req) {
		return
	}

	result, err := h.rollback.Execute(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, rollback.ErrNoTargetVersion), errors.Is(err, rollback.ErrEmptyScope):
			BadRequest(w, err.Error())
		default:
			// Частичная постановка: отдаём и ошибку, и то, что успело
			// встать, оператору нужно видеть оба факта.
			h.logger.Error("emergency rollback failed", "error", err)
			JSON(w, http.StatusInternalServerError, map[string]any{
				"error":  ErrorDetail{Code: ErrCodeInternalError, Message: err.Error()},
				"result": result,
			})
		}
		return
	}

	JSON(w, http.StatusAccepted, DataResponse{Data: result})
}
