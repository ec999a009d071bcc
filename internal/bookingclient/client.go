// Package bookingclient — клиентская сторона API заказов: сессия, кэш
// проекций с оптимистичными изменениями, защита от повторных запросов и опрос.
package bookingclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Leganyst/homeservice-platform/internal/api"
	"github.com/Leganyst/homeservice-platform/internal/booking"
	"github.com/Leganyst/homeservice-platform/internal/submission"
)

// availabilityKey — ключ Guard для переключения доступности исполнителя.
var availabilityKey = uuid.Nil

type Client struct {
	sub          *submission.Submitter
	guard        *Guard
	cache        *Cache
	cancelWindow time.Duration
	now          func() time.Time
	refresh      singleflight.Group

	mu      sync.RWMutex
	session api.SessionResponse
}

type Option func(*Client)

func WithCancelWindow(d time.Duration) Option { return func(c *Client) { c.cancelWindow = d } }
func WithClock(now func() time.Time) Option   { return func(c *Client) { c.now = now } }

func New(sub *submission.Submitter, opts ...Option) *Client {
	c := &Client{
		sub:          sub,
		guard:        NewGuard(),
		cache:        NewCache(),
		cancelWindow: booking.DefaultCancelWindow,
		now:          time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Cache() *Cache { return c.cache }

func (c *Client) Session() api.SessionResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Token
}

func (c *Client) setSession(s api.SessionResponse) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

type SignupForm struct {
	Name      string
	Email     string
	Password  string
	Phone     string
	Role      string
	AllowsCOD bool
}

func (c *Client) Signup(ctx context.Context, f SignupForm) (api.SessionResponse, error) {
	values := map[string]string{"name": f.Name, "email": f.Email, "password": f.Password}
	if f.Phone != "" {
		values["phone"] = f.Phone
	}
	if f.Role != "" {
		values["role"] = f.Role
	}
	if f.AllowsCOD {
		values["allowsCod"] = "true"
	}
	var out api.SessionResponse
	err := c.sub.Submit(ctx, submission.Request{Path: "/api/auth/signup", Values: values, Rules: submission.SignupRules}, &out)
	if err != nil {
		return api.SessionResponse{}, err
	}
	c.setSession(out)
	return out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (api.SessionResponse, error) {
	var out api.SessionResponse
	err := c.sub.Submit(ctx, submission.Request{
		Path:   "/api/auth/login",
		Values: map[string]string{"email": email, "password": password},
		Rules:  submission.LoginRules,
	}, &out)
	if err != nil {
		return api.SessionResponse{}, err
	}
	c.setSession(out)
	return out, nil
}

// RequestPasswordReset просит прислать токен сброса. Ответ не зависит от того,
// зарегистрирован ли адрес.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.sub.Submit(ctx, submission.Request{
		Path:   "/api/auth/password-reset",
		Values: map[string]string{"email": email},
		Rules:  submission.PasswordResetRules,
	}, nil)
}

// ConfirmPasswordReset ставит новый пароль по токену из письма. Сессию не открывает.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	return c.sub.Submit(ctx, submission.Request{
		Path:   "/api/auth/password-reset/confirm",
		Values: map[string]string{"token": token, "password": password},
		Rules:  submission.PasswordResetConfirmRules,
	}, nil)
}

type ProfileForm struct {
	Name      string
	Phone     string
	Address   string
	Latitude  *float64
	Longitude *float64
}

func (c *Client) UpdateProfile(ctx context.Context, f ProfileForm) (api.Profile, error) {
	values := map[string]string{}
	for k, v := range map[string]string{"name": f.Name, "phone": f.Phone, "address": f.Address} {
		if v != "" {
			values[k] = v
		}
	}
	if f.Latitude != nil {
		values["latitude"] = strconv.FormatFloat(*f.Latitude, 'f', -1, 64)
	}
	if f.Longitude != nil {
		values["longitude"] = strconv.FormatFloat(*f.Longitude, 'f', -1, 64)
	}
	var out api.Profile
	err := c.sub.Submit(ctx, submission.Request{
		Method: http.MethodPut,
		Path:   "/api/profile",
		Values: values,
		Rules:  submission.ProfileRules,
		Token:  c.token(),
	}, &out)
	return out, err
}

func (c *Client) Services(ctx context.Context) ([]api.Service, error) {
	var out []api.Service
	err := c.sub.Do(ctx, http.MethodGet, "/api/services", "", nil, &out)
	return out, err
}

// Workers — исполнители; serviceID == uuid.Nil без фильтра.
func (c *Client) Workers(ctx context.Context, serviceID uuid.UUID) ([]api.Worker, error) {
	path := "/api/workers"
	if serviceID != uuid.Nil {
		path += "?service=" + url.QueryEscape(serviceID.String())
	}
	var out []api.Worker
	err := c.sub.Do(ctx, http.MethodGet, path, "", nil, &out)
	return out, err
}

type BookingForm struct {
	WorkerID     uuid.UUID
	ServiceID    uuid.UUID
	Description  string
	Urgency      string
	ContactDates []string
}

// CreateBooking отправляет заявку. Повторная отправка создаст второй заказ.
func (c *Client) CreateBooking(ctx context.Context, f BookingForm) (api.Booking, error) {
	values := map[string]string{
		"workerId":    f.WorkerID.String(),
		"serviceId":   f.ServiceID.String(),
		"description": f.Description,
	}
	if f.Urgency != "" {
		values["urgency"] = f.Urgency
	}
	if len(f.ContactDates) > 0 {
		raw, err := json.Marshal(f.ContactDates)
		if err != nil {
			return api.Booking{}, fmt.Errorf("marshal contact dates: %w", err)
		}
		values["contactDates"] = string(raw)
	}

	seq := c.cache.Issue()
	var out api.Booking
	err := c.sub.Submit(ctx, submission.Request{
		Path:   "/api/bookings",
		Values: values,
		Rules:  submission.BookingRules,
		Token:  c.token(),
	}, &out)
	if err != nil {
		return api.Booking{}, err
	}
	if err := out.Validate(); err != nil {
		return api.Booking{}, err
	}
	c.cache.Ack(seq, out)
	return out, nil
}

func (c *Client) Get(ctx context.Context, id uuid.UUID) (api.Booking, error) {
	seq := c.cache.Issue()
	var out api.Booking
	if err := c.sub.Do(ctx, http.MethodGet, "/api/bookings/"+id.String(), c.token(), nil, &out); err != nil {
		return api.Booking{}, err
	}
	if err := out.Validate(); err != nil {
		return api.Booking{}, err
	}
	c.cache.Refresh(seq, []api.Booking{out})
	view, _ := c.cache.Get(id)
	return view, nil
}

func (c *Client) List(ctx context.Context, page, pageSize int) (api.Page[api.Booking], error) {
	seq := c.cache.Issue()
	var out api.Page[api.Booking]
	path := fmt.Sprintf("/api/bookings?page=%d&pageSize=%d", page, pageSize)
	if err := c.sub.Do(ctx, http.MethodGet, path, c.token(), nil, &out); err != nil {
		return out, err
	}
	for i := range out.Items {
		if err := out.Items[i].Validate(); err != nil {
			return api.Page[api.Booking]{}, err
		}
	}
	c.cache.Refresh(seq, out.Items)
	return out, nil
}

// Refresh перечитывает первую страницу заказов. Одновременные вызовы схлопываются.
func (c *Client) Refresh(ctx context.Context) error {
	_, err, _ := c.refresh.Do("bookings", func() (any, error) {
		return c.List(ctx, 1, 100)
	})
	return err
}

// NewPoller — опрос заказов с заданным интервалом (0 — по умолчанию).
func (c *Client) NewPoller(interval time.Duration) *Poller {
	return &Poller{Interval: interval, Refresh: c.Refresh}
}

// CanCancel пересчитывает окно отмены на момент показа.
func (c *Client) CanCancel(b api.Booking) bool {
	return CanCancel(b, c.now(), c.cancelWindow)
}

func CanCancel(b api.Booking, now time.Time, window time.Duration) bool {
	return booking.CancelAllowed(b.ToDomain(), now, window)
}

// mutate — общий путь изменяющих вызовов: guard, оптимистичное изменение,
// запрос, перезапись ответом сервера или откат.
func (c *Client) mutate(ctx context.Context, id uuid.UUID, method, path string, body any, optimistic func(*api.Booking)) (api.Booking, error) {
	release, err := c.guard.Acquire(id)
	if err != nil {
		return api.Booking{}, err
	}
	defer release()

	seq := c.cache.Begin(id, optimistic)
	var out api.Booking
	if err := c.sub.Do(ctx, method, path, c.token(), body, &out); err != nil {
		c.cache.Rollback(id, seq)
		return api.Booking{}, err
	}
	if err := out.Validate(); err != nil {
		c.cache.Rollback(id, seq)
		return api.Booking{}, err
	}
	c.cache.Ack(seq, out)
	return out, nil
}

func setStatus(s booking.Status) func(*api.Booking) {
	return func(b *api.Booking) { b.Status = s }
}

func (c *Client) Cancel(ctx context.Context, id uuid.UUID) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodPost, "/api/bookings/"+id.String()+"/cancel", nil, setStatus(booking.StatusCancelled))
}

func (c *Client) ChoosePaymentMethod(ctx context.Context, id uuid.UUID, m booking.PaymentMethod) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodPost, "/api/bookings/"+id.String()+"/payment-method", api.PaymentMethodRequest{Method: m},
		func(b *api.Booking) { b.PaymentMethod = m })
}

// CreateOrder заводит онлайн-заказ в шлюзе. Способ оплаты online ставится
// оптимистично и подтверждается перечитанным заказом; при ошибке — откат.
func (c *Client) CreateOrder(ctx context.Context, id uuid.UUID) (api.Order, error) {
	release, err := c.guard.Acquire(id)
	if err != nil {
		return api.Order{}, err
	}
	defer release()

	seq := c.cache.Begin(id, func(b *api.Booking) { b.PaymentMethod = booking.MethodOnline })
	var out api.Order
	if err := c.sub.Do(ctx, http.MethodPost, "/api/bookings/"+id.String()+"/orders", c.token(), nil, &out); err != nil {
		c.cache.Rollback(id, seq)
		return api.Order{}, err
	}

	var b api.Booking
	err = c.sub.Do(ctx, http.MethodGet, "/api/bookings/"+id.String(), c.token(), nil, &b)
	if err == nil {
		err = b.Validate()
	}
	if err != nil {
		// заказ уже заведён; кэш догонит следующий опрос
		c.cache.Rollback(id, seq)
		return out, nil
	}
	c.cache.Ack(seq, b)
	return out, nil
}

func (c *Client) VerifyPayment(ctx context.Context, id uuid.UUID, req api.VerifyPaymentRequest) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodPost, "/api/bookings/"+id.String()+"/orders/verify", req, nil)
}

func (c *Client) Rate(ctx context.Context, id uuid.UUID, rating int) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodPost, "/api/bookings/"+id.String()+"/rating", api.RatingRequest{Rating: rating}, nil)
}

func (c *Client) Dispute(ctx context.Context, id uuid.UUID) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodPost, "/api/bookings/"+id.String()+"/dispute", nil, nil)
}

func (c *Client) Accept(ctx context.Context, id uuid.UUID) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodPost, "/api/jobs/"+id.String()+"/accept", nil, setStatus(booking.StatusAccepted))
}

func (c *Client) Start(ctx context.Context, id uuid.UUID) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodPost, "/api/jobs/"+id.String()+"/start", nil, setStatus(booking.StatusInProgress))
}

func (c *Client) SendReceipt(ctx context.Context, id uuid.UUID) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodPost, "/api/jobs/"+id.String()+"/receipt", nil, func(b *api.Booking) { b.ReceiptSent = true })
}

func (c *Client) ConfirmCOD(ctx context.Context, id uuid.UUID) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodPost, "/api/jobs/"+id.String()+"/cod/confirm", nil, nil)
}

func (c *Client) Complete(ctx context.Context, id uuid.UUID) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodPost, "/api/jobs/"+id.String()+"/complete", nil, setStatus(booking.StatusCompleted))
}

func (c *Client) AddItem(ctx context.Context, id uuid.UUID, item api.TariffItem) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodPost, "/api/jobs/"+id.String()+"/tariff", item, nil)
}

func (c *Client) UpdateItem(ctx context.Context, id uuid.UUID, index int, item api.TariffItem) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodPut, fmt.Sprintf("/api/jobs/%s/tariff/%d", id, index), item, nil)
}

func (c *Client) RemoveItem(ctx context.Context, id uuid.UUID, index int) (api.Booking, error) {
	return c.mutate(ctx, id, http.MethodDelete, fmt.Sprintf("/api/jobs/%s/tariff/%d", id, index), nil, nil)
}

func (c *Client) WorkerHome(ctx context.Context) (api.WorkerHome, error) {
	seq := c.cache.Issue()
	var out api.WorkerHome
	if err := c.sub.Do(ctx, http.MethodGet, "/api/worker/home", c.token(), nil, &out); err != nil {
		return out, err
	}
	items := append([]api.Booking(nil), out.Requests...)
	if out.ActiveJob != nil {
		items = append(items, *out.ActiveJob)
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return api.WorkerHome{}, err
		}
	}
	c.cache.Refresh(seq, items)
	return out, nil
}

// SetAvailability переключает приём заказов исполнителем.
func (c *Client) SetAvailability(ctx context.Context, available bool) (api.Worker, error) {
	release, err := c.guard.Acquire(availabilityKey)
	if err != nil {
		return api.Worker{}, err
	}
	defer release()
	var out api.Worker
	err = c.sub.Do(ctx, http.MethodPost, "/api/worker/availability", c.token(), api.AvailabilityRequest{Available: available}, &out)
	return out, err
}

func (c *Client) AddOffer(ctx context.Context, serviceID uuid.UUID, charge int64) (api.Offer, error) {
	var out api.Offer
	err := c.sub.Do(ctx, http.MethodPost, "/api/worker/services", c.token(), api.OfferRequest{ServiceID: serviceID, Charge: charge}, &out)
	return out, err
}
