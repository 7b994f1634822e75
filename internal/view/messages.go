package view

// MessageKey names a user-facing message.
type MessageKey string

const (
	MsgOrdersLoadFailed      MessageKey = "orders_load_failed"
	MsgOrderSubmitFailed     MessageKey = "order_submit_failed"
	MsgStatsLoadFailed       MessageKey = "stats_load_failed"
	MsgDemoAccountLoadFailed MessageKey = "demo_account_load_failed"
	MsgPricesLoadFailed      MessageKey = "prices_load_failed"
	MsgNewsLoadFailed        MessageKey = "news_load_failed"
	MsgAnalysisLoadFailed    MessageKey = "analysis_load_failed"
	MsgSimulationLoadFailed  MessageKey = "simulation_load_failed"
	MsgTradeFailed           MessageKey = "trade_failed"
	MsgChatFailed            MessageKey = "chat_failed"
)

// Messages is a catalog of user-facing strings.
type Messages map[MessageKey]string

// Get returns the message for key, or the key itself if it is missing.
func (m Messages) Get(key MessageKey) string {
	if s, ok := m[key]; ok {
		return s
	}
	return string(key)
}

// English is the default catalog.
var English = Messages{
	MsgOrdersLoadFailed:      "Could not load your orders. Please try again later.",
	MsgOrderSubmitFailed:     "Could not place the order.",
	MsgStatsLoadFailed:       "Could not load statistics. Please try again later.",
	MsgDemoAccountLoadFailed: "Could not load the demo account. Please try again later.",
	MsgPricesLoadFailed:      "Could not load crypto prices. Please try again later.",
	MsgNewsLoadFailed:        "Could not load crypto news. Please try again later.",
	MsgAnalysisLoadFailed:    "Could not load the market analysis.",
	MsgSimulationLoadFailed:  "Could not load simulation data.",
	MsgTradeFailed:           "Could not execute the trade.",
	MsgChatFailed:            "Could not get a reply.",
}

// Spanish is the catalog the dashboard originally shipped with.
var Spanish = Messages{
	MsgOrdersLoadFailed:      "Error al cargar las órdenes. Por favor, intente de nuevo más tarde.",
	MsgOrderSubmitFailed:     "Error al crear la orden.",
	MsgStatsLoadFailed:       "No se pudieron cargar las estadísticas. Inténtalo más tarde.",
	MsgDemoAccountLoadFailed: "Error al cargar los datos de la cuenta demo. Por favor, intente de nuevo más tarde.",
	MsgPricesLoadFailed:      "Error al cargar los precios de criptomonedas. Por favor, intente de nuevo más tarde.",
	MsgNewsLoadFailed:        "Error al cargar las noticias de criptomonedas. Por favor, intente de nuevo más tarde.",
	MsgAnalysisLoadFailed:    "Error al cargar el análisis de mercado.",
	MsgSimulationLoadFailed:  "Error al cargar datos de simulación",
	MsgTradeFailed:           "Error al ejecutar operación",
	MsgChatFailed:            "Error al obtener respuesta",
}

// CatalogFor returns the catalog for a locale tag, falling back to English.
func CatalogFor(locale string) Messages {
	switch locale {
	case "es", "es-ES", "es_ES":
		return Spanish
	default:
		return English
	}
}
