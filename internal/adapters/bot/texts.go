package bot

// Тексты для пользователей на испанском: язык продукта.
const (
	textWelcome = "👋 ¡Bienvenido!\n\n" +
		"Este bot envía casos clínicos educativos.\n" +
		"Suscríbete al canal para recibir contenido."
	textInvalidLink    = "❌ Enlace inválido."
	textChannelAccess  = "❌ No se pudo acceder al canal"
	textNoContent      = "❌ No se pudo obtener el contenido."
	textTimeout        = "⏰ Tiempo agotado. Intenta de nuevo."
	textMyID           = "🆔 Tu User ID: %d"
	textCancelled      = "🗑️ Cancelado."
	textNoActiveMode   = "⚠️ No hay modo activo.\n\nUsa /lote para empezar."
	textBatchFirst     = "⚠️ Primero usa /lote"
	textBatchEmpty     = "⚠️ Lote vacío. Envía contenido primero."
	textBatchSending   = "🚀 Enviando %d elementos..."
	textBatchSent      = "✅ %d elementos enviados al canal."
	textBatchFailed    = "\n⚠️ %d con error."
	textBatchError     = "❌ Error: %v"
	textBatchCount     = "\n📦 En el lote: %d"
	textButtonInvalid  = "⚠️ Formato inválido. Usa: @@@ Texto | link"
	textButtonCaptured = "🔗 BOTÓN CAPTURADO (se asociará al mensaje anterior)"
	textMarkupCaptured = "✅ MENSAJE + BOTÓN CAPTURADO"
	textForwardCapture = "✅ Mensaje capturado"
	textPollCaptured   = "✅ Encuesta capturada"
	textQuizCaptured   = "✅ ENCUESTA CAPTURADA\nRespuesta correcta: %c"
	textQuizNoAnswer   = "⚠️ QUIZ SIN RESPUESTA DETECTADA\n" +
		"Vota en la encuesta antes de enviarla.\n" +
		"Se usará opción A por defecto."
	textAdsStopped     = "🛑 Publicidad detenida."
	textAdStopped      = "🛑 Campaña #%d detenida."
	textAdNotFound     = "⚠️ No existe la campaña #%d."
	textAdStopUsage    = "⚠️ Usa: /stop_ads <id> o /stop_ads para detener todo"
	textAdsEmpty       = "📭 No hay publicidad activa."
	textAdsHeader      = "📢 PUBLICIDAD ACTIVA\n"
	textAdsLine        = "\n#%d · cada %s · %s"
	textAdFormat       = "❌ Formato inválido. Usa: 5m, 30min, 1h, 8h"
	textAdTooShort     = "❌ El intervalo mínimo es %s."
	textAdStartFailed  = "❌ No se pudo activar la publicidad: %v"
	textMarkupOnlyPost = "👆 Opciones disponibles"
)

const textBatchMode = "📦 MODO LOTE ACTIVADO\n\n" +
	"Envía contenido (Encuestas, Fotos, Textos).\n\n" +
	"Sintaxis de botones:\n" +
	"🔹 %%% t.me/canal/22 → Con chiste médico\n" +
	"🔸 @@@ Texto | t.me/canal/22 → Sin chiste\n" +
	"🔸 @@@ Texto | @usuario → Link directo\n" +
	"🔸 @@@ Texto | web.com → Link directo\n\n" +
	"⚠️ Botón solo → se pega al mensaje anterior\n\n" +
	"/enviar para publicar"

const textAdSetup = "📢 CONFIGURAR PUBLICIDAD\n\n" +
	"Envía el contenido del anuncio (texto, imagen, etc.)\n\n" +
	"/cancelar para salir"

const textAdInterval = "⏰ ¿Cada cuánto se repite?\n\n" +
	"Ejemplos:\n" +
	"• 5m o 5 min → 5 minutos\n" +
	"• 1h o 1 hora → 1 hora\n" +
	"• 8 → 8 horas (legacy)\n\n" +
	"/cancelar para salir"

const textAdActivated = "✅ PUBLICIDAD ACTIVADA\n\n" +
	"🆔 Campaña #%d\n" +
	"⏰ Intervalo: cada %s\n" +
	"🔄 Primer envío: ahora\n\n" +
	"Usa /stop_ads para detener"

const textAdminPanel = "🔧 PANEL DE ADMINISTRADOR\n\n" +
	"📦 LOTES:\n" +
	"/lote - Iniciar modo lote\n" +
	"/enviar - Publicar lote\n" +
	"/cancelar - Cancelar proceso\n\n" +
	"📢 PUBLICIDAD:\n" +
	"/set_ads - Configurar anuncio\n" +
	"/list_ads - Ver ads activas\n" +
	"/stop_ads [id] - Detener ads\n" +
	"/stop_all_ads - Detener todas\n\n" +
	"📝 SINTAXIS:\n" +
	"%%% t.me/canal/22 → Con chiste\n" +
	"@@@ Texto | t.me/canal/22 → Sin chiste\n" +
	"@@@ Texto | @user → Link directo"
