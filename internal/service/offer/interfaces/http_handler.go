package interfaces

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"merchdash/internal/pkg/logger"
	"merchdash/internal/service/offer/application"
	"merchdash/internal/service/offer/domain"
)

const (
	SessionCookieName = "offer_wizard_session"

	offersPath = "/dashboard/offers/"
)

//go:embed templates/*.html
var templateFS embed.FS

// pages 每个页面单独与 layout 组合成一个模板集合，content 块互不覆盖
var pages = map[string]*template.Template{}

func init() {
	for _, page := range []string{"list", "metadata", "condition", "benefit", "preview"} {
		pages[page] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+page+".html"))
	}
}

// OfferHandler 封装了优惠后台（列表 + 创建/编辑向导）的 HTTP 处理器
type OfferHandler struct {
	wizard       *application.WizardService
	offers       *application.OfferService
	cookieSecure bool
}

func NewOfferHandler(wizard *application.WizardService, offers *application.OfferService, cookieSecure bool) *OfferHandler {
	return &OfferHandler{wizard: wizard, offers: offers, cookieSecure: cookieSecure}
}

// RegisterRoutes 在 ServeMux 上注册所有路由。
// 每个步骤有两个入口：/dashboard/offers/<step>/ 用于新建，/dashboard/offers/{id}/<step>/ 用于编辑。
func (h *OfferHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+offersPath+"{$}", h.handleList)
	mux.HandleFunc("POST "+offersPath+"{id}/delete/{$}", h.handleDelete)
	mux.HandleFunc("POST "+offersPath+"cancel/{$}", h.handleCancel)
	mux.HandleFunc("POST "+offersPath+"{id}/cancel/{$}", h.handleCancel)

	for _, step := range domain.WizardSteps {
		for _, prefix := range []string{offersPath, offersPath + "{id}/"} {
			pattern := prefix + string(step) + "/{$}"
			mux.HandleFunc("GET "+pattern, h.showStep(step))
			mux.HandleFunc("POST "+pattern, h.submitStep(step))
		}
	}
}

// pageData 是所有页面模板共用的渲染数据
type pageData struct {
	Title          string
	Step           domain.Step
	Steps          []domain.Step
	IsEdit         bool
	Base           string
	Form           map[string]string
	Errors         domain.ValidationErrors
	Ranges         []*domain.Range
	ConditionTypes []domain.ConditionType
	BenefitTypes   []domain.BenefitType
	Preview        *domain.Offer
	Offers         []*domain.Offer
	Today          time.Time
}

func (p *pageData) Action() string {
	return p.Base + string(p.Step) + "/"
}

var stepTitles = map[domain.Step]string{
	domain.StepMetadata:  "Name and dates",
	domain.StepCondition: "Condition",
	domain.StepBenefit:   "Incentive",
	domain.StepPreview:   "Preview",
}

func extractContext(r *http.Request) context.Context {
	return otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

// draftKey 从 cookie 中取出会话令牌，没有或无法识别时签发一个新的
func (h *OfferHandler) draftKey(w http.ResponseWriter, r *http.Request) (domain.DraftKey, bool) {
	var key domain.DraftKey
	if raw := r.PathValue("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return key, false
		}
		key.OfferID = id
	}

	if c, err := r.Cookie(SessionCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			key.Session = c.Value
			return key, true
		}
	}
	key.Session = uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    key.Session,
		Path:     "/dashboard/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return key, true
}

func basePath(key domain.DraftKey) string {
	if key.IsEdit() {
		return fmt.Sprintf("%s%d/", offersPath, key.OfferID)
	}
	return offersPath
}

func stepURL(key domain.DraftKey, step domain.Step) string {
	if step == domain.StepCommitted {
		return offersPath
	}
	return basePath(key) + string(step) + "/"
}

func newPage(key domain.DraftKey, step domain.Step) *pageData {
	title := "Create offer"
	if key.IsEdit() {
		title = "Edit offer"
	}
	return &pageData{
		Title:          title + ": " + stepTitles[step],
		Step:           step,
		Steps:          domain.WizardSteps,
		IsEdit:         key.IsEdit(),
		Base:           basePath(key),
		Form:           map[string]string{},
		ConditionTypes: domain.ConditionTypes,
		BenefitTypes:   domain.BenefitTypes,
	}
}

func (h *OfferHandler) showStep(step domain.Step) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := extractContext(r)
		key, ok := h.draftKey(w, r)
		if !ok {
			http.NotFound(w, r)
			return
		}

		view, err := h.wizard.View(ctx, key, step)
		if err != nil {
			h.writeError(ctx, w, r, err)
			return
		}
		if view.Redirect != "" {
			http.Redirect(w, r, stepURL(key, view.Redirect), http.StatusFound)
			return
		}

		page := newPage(key, step)
		page.Form = formFromDraft(step, view.Draft)
		page.Ranges = view.Ranges
		page.Preview = view.Preview
		h.render(ctx, w, http.StatusOK, string(step), page)
	}
}

func (h *OfferHandler) submitStep(step domain.Step) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := extractContext(r)
		key, ok := h.draftKey(w, r)
		if !ok {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form body", http.StatusBadRequest)
			return
		}

		var (
			result *application.StepResult
			err    error
		)
		switch step {
		case domain.StepMetadata:
			result, err = h.wizard.SubmitMetadata(ctx, key, domain.MetadataForm{
				Name:        r.PostForm.Get("name"),
				Description: r.PostForm.Get("description"),
				StartDate:   r.PostForm.Get("start_date"),
				EndDate:     r.PostForm.Get("end_date"),
			})
		case domain.StepCondition:
			result, err = h.wizard.SubmitCondition(ctx, key, ruleForm(r))
		case domain.StepBenefit:
			result, err = h.wizard.SubmitBenefit(ctx, key, ruleForm(r))
		case domain.StepPreview:
			result, err = h.wizard.ConfirmPreview(ctx, key)
		}
		if err != nil {
			h.writeError(ctx, w, r, err)
			return
		}

		if result.Advanced() {
			http.Redirect(w, r, stepURL(key, result.Step), http.StatusFound)
			return
		}

		// 校验失败：带着用户刚提交的值重新展示当前步骤
		page := newPage(key, step)
		page.Errors = result.Errors
		for field := range r.PostForm {
			page.Form[field] = r.PostForm.Get(field)
		}
		if step == domain.StepCondition || step == domain.StepBenefit {
			view, err := h.wizard.View(ctx, key, step)
			if err != nil {
				h.writeError(ctx, w, r, err)
				return
			}
			page.Ranges = view.Ranges
		}
		h.render(ctx, w, http.StatusOK, string(step), page)
	}
}

func ruleForm(r *http.Request) domain.RuleForm {
	return domain.RuleForm{
		Range: r.PostForm.Get("range"),
		Type:  r.PostForm.Get("type"),
		Value: r.PostForm.Get("value"),
	}
}

// formFromDraft 把草稿中已保存的值转换成表单字段，用于预填页面
func formFromDraft(step domain.Step, d *domain.Draft) map[string]string {
	form := map[string]string{}
	if d == nil {
		return form
	}
	switch step {
	case domain.StepMetadata:
		if md := d.Metadata; md != nil {
			form["name"] = md.Name
			form["description"] = md.Description
			form["start_date"] = md.StartDate.Format(domain.DateLayout)
			form["end_date"] = md.EndDate.Format(domain.DateLayout)
		}
	case domain.StepCondition:
		if c := d.Condition; c != nil {
			form["range"] = strconv.FormatInt(c.RangeID, 10)
			form["type"] = string(c.Type)
			form["value"] = c.Value.String()
		}
	case domain.StepBenefit:
		if b := d.Benefit; b != nil {
			form["range"] = strconv.FormatInt(b.RangeID, 10)
			form["type"] = string(b.Type)
			form["value"] = b.Value.String()
		}
	}
	return form
}

func (h *OfferHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)
	offers, err := h.offers.List(ctx)
	if err != nil {
		h.writeError(ctx, w, r, err)
		return
	}
	page := &pageData{Title: "Offers", Offers: offers, Form: map[string]string{}, Today: time.Now()}
	h.render(ctx, w, http.StatusOK, "list", page)
}

func (h *OfferHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.offers.Delete(ctx, id); err != nil {
		h.writeError(ctx, w, r, err)
		return
	}
	http.Redirect(w, r, offersPath, http.StatusFound)
}

func (h *OfferHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := extractContext(r)
	key, ok := h.draftKey(w, r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.wizard.Cancel(ctx, key); err != nil {
		h.writeError(ctx, w, r, err)
		return
	}
	http.Redirect(w, r, offersPath, http.StatusFound)
}

// render 先渲染到缓冲区，模板出错时不会输出半个页面
func (h *OfferHandler) render(ctx context.Context, w http.ResponseWriter, status int, page string, data *pageData) {
	var buf bytes.Buffer
	if err := pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("page", page).Msg("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *OfferHandler) writeError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrOfferNotFound):
		http.NotFound(w, r)
	default:
		logger.Ctx(ctx).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
