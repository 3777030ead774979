package bot

import (
	"fmt"
	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/car-tracker/internal/domain/events"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"github.com/maxaizer/car-tracker/internal/logger"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"strings"
)

const adsPerMessage = 5

type apiInterface interface {
	Send(chattable botApi.Chattable) (botApi.Message, error)
}

// Notifier delivers new ads found by the recheck sweep to the search owner.
// Delivery is fire-and-forget: a failed send is logged and dropped.
type Notifier struct {
	api apiInterface
	bus EventBus.Bus
}

func NewNotifier(token string, bus EventBus.Bus) (*Notifier, error) {

	api, err := botApi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Infof("Authorized on account %s", api.Self.UserName)

	if err = botApi.SetLogger(log.StandardLogger()); err != nil {
		return nil, err
	}

	return newNotifier(api, bus)
}

// NewLogNotifier writes notifications to the log instead of Telegram.
func NewLogNotifier(bus EventBus.Bus) (*Notifier, error) {
	return newNotifier(logApi{}, bus)
}

func newNotifier(api apiInterface, bus EventBus.Bus) (*Notifier, error) {

	if bus == nil {
		return nil, errors.New("bus is nil")
	}

	n := &Notifier{api: api, bus: bus}
	if err := bus.SubscribeAsync(events.AdsFoundTopic, n.onAdsFound, false); err != nil {
		return nil, err
	}
	return n, nil
}

// Stop waits for the notifications that are already being sent.
func (n *Notifier) Stop() {
	if err := n.bus.Unsubscribe(events.AdsFoundTopic, n.onAdsFound); err != nil {
		log.Warnf("failed to unsubscribe notifier: %v", err)
	}
	n.bus.WaitAsync()
}

func (n *Notifier) onAdsFound(event events.AdsFound) {
	if len(event.Ads) == 0 {
		return
	}
	msg := botApi.NewMessage(event.UserID, formatAds(event.Search, event.Ads))
	msg.DisableWebPagePreview = true
	_, _ = sendWithLogError(n.api, msg)
}

func formatAds(search models.Search, ads []models.AdRecord) string {
	var sb strings.Builder

	sb.WriteString("🔔 Новые объявления по вашему поиску")
	if brand := search.Params.Text("brand"); brand != "" {
		fmt.Fprintf(&sb, " \"%s\"", brand)
	}
	if search.Platform != "" {
		fmt.Fprintf(&sb, " (%s)", search.Platform)
	}
	sb.WriteString(":\n\n")

	for _, ad := range ads[:min(len(ads), adsPerMessage)] {
		fmt.Fprintf(&sb, "%s\nЦена: %s\nДата: %s\nСсылка: %s\n\n", ad.Title, ad.Price, ad.Date, ad.URL)
	}
	if rest := len(ads) - adsPerMessage; rest > 0 {
		fmt.Fprintf(&sb, "И ещё %d", rest)
	}
	return strings.TrimSpace(sb.String())
}

func sendWithLogError(api apiInterface, chattable botApi.Chattable) (botApi.Message, error) {
	msg, err := api.Send(chattable)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
			Errorf("error occured while sending message: %v", err)
	}
	return msg, err
}

type logApi struct{}

func (logApi) Send(chattable botApi.Chattable) (botApi.Message, error) {
	if msg, ok := chattable.(botApi.MessageConfig); ok {
		log.Infof("notification for chat %v:\n%s", msg.ChatID, msg.Text)
	}
	return botApi.Message{}, nil
}
