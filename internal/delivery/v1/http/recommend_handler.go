package http

import (
	"fmt"
	"net/http"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type RecommendHandler struct {
	recUC    usecase.RecommendUC
	adminUC  usecase.IndexAdminUC
	validate *validator.Validate
	recCfg   *cfg.RecommendCfg
	logger   logger.Logger
}

func NewRecommendHandler(recUC usecase.RecommendUC, adminUC usecase.IndexAdminUC, recCfg *cfg.RecommendCfg, logger logger.Logger) *RecommendHandler {
	return &RecommendHandler{
		recUC:    recUC,
		adminUC:  adminUC,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		recCfg:   recCfg,
		logger:   logger,
	}
}

// recommend
//
//	@Summary		Похожие варианты товара
//	@Description	Возвращает до k похожих вариантов других товаров, по одному на родительский товар
//	@Tags			recommendations
//	@Produce		json
//	@Param			itemID	path		string	true	"Идентификатор варианта"
//	@Param			k		query		int		false	"Размер выдачи"
//	@Success		200		{object}	RecommendResponse
//	@Failure		400		{object}	ErrorResponse	"Некорректный k"
//	@Failure		404		{object}	ErrorResponse	"Товар не найден в индексе"
//	@Failure		503		{object}	ErrorResponse	"Индекс ещё не загружен"
//	@Router			/recommend/{itemID} [get]
func (h *RecommendHandler) recommend(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	k, err := parseK(r, h.recCfg.DefaultK)
	if err != nil {
		h.logger.Warnf("%d %s", http.StatusBadRequest, err.Error())
		WriteError(w, err)
		return
	}

	res, err := h.recUC.Recommend(r.Context(), &usecase.RecommendReq{ItemID: itemID, K: k})
	if err != nil {
		h.logFailure(err, "recommend %s", itemID)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toRecommendResponse(res))
}

// recommendBatch
//
//	@Summary		Пакетные рекомендации
//	@Description	Рекомендации для нескольких товаров за один поиск. Неизвестные товары пропускаются
//	@Tags			recommendations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		BatchRecommendRequest	true	"Идентификаторы и k"
//	@Success		200		{object}	BatchRecommendResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		503		{object}	ErrorResponse	"Индекс ещё не загружен"
//	@Router			/recommend/batch [post]
func (h *RecommendHandler) recommendBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRecommendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warnf("%d %s", http.StatusBadRequest, err.Error())
		WriteError(w, err)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		err = fmt.Errorf("%w: %s", e.ErrInvalidArgument, err.Error())
		h.logger.Warnf("%d %s", http.StatusBadRequest, err.Error())
		WriteError(w, err)
		return
	}

	k := h.recCfg.DefaultK
	if req.K != nil {
		k = *req.K
	}

	res, err := h.recUC.RecommendBatch(r.Context(), &usecase.BatchRecommendReq{ItemIDs: req.ProductIDs, K: k})
	if err != nil {
		h.logFailure(err, "batch recommend of %d items", len(req.ProductIDs))
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toBatchRecommendResponse(res))
}

// health
//
//	@Summary		Состояние сервиса
//	@Tags			service
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"healthy или degraded"
//	@Failure		503	{object}	HealthResponse	"Индекс не загружен"
//	@Router			/health [get]
func (h *RecommendHandler) health(w http.ResponseWriter, r *http.Request) {
	res := h.recUC.Health(r.Context())

	status := http.StatusOK
	if res.Status == usecase.StatusUnavailable {
		status = http.StatusServiceUnavailable
	}

	WriteSuccess(w, status, toHealthResponse(res))
}

// stats
//
//	@Summary		Статистика индекса
//	@Tags			service
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/stats [get]
func (h *RecommendHandler) stats(w http.ResponseWriter, r *http.Request) {
	res, err := h.recUC.Stats(r.Context())
	if err != nil {
		h.logger.Errorf(err, "stats")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toStatsResponse(res))
}

// rebuildIndex
//
//	@Summary		Перестроение индекса
//	@Description	Ставит перестроение в очередь. Повторный запрос до начала сборки ничего не добавляет
//	@Tags			admin
//	@Produce		json
//	@Success		202	{object}	RebuildResponse
//	@Router			/admin/index/rebuild [post]
func (h *RecommendHandler) rebuildIndex(w http.ResponseWriter, r *http.Request) {
	queued := h.adminUC.TriggerRebuild()

	status := "queued"
	if !queued {
		status = "already pending"
	}
	h.logger.Infof("index rebuild requested via api: %s", status)

	WriteSuccess(w, http.StatusAccepted, &RebuildResponse{Queued: queued, Status: status})
}

func (h *RecommendHandler) logFailure(err error, format string, args ...any) {
	code, _ := ToHTTPResponse(err)
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		h.logger.Errorf(err, format, args...)
		return
	}

	h.logger.Warnf("%d "+format+": %s", append(append([]any{code}, args...), err.Error())...)
}
