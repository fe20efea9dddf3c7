package i18n

var ptBR = map[Code]string{
	"UNKNOWN": "Algo deu errado. Tente novamente.",

	"MEMORY_TITLE_REQUIRED":         "O título da página é obrigatório.",
	"MEMORY_TITLE_TOO_LONG":         "O título da página deve ter no máximo {{.Max}} caracteres.",
	"MEMORY_LETTER_TOO_SHORT":       "A carta de amor deve ter pelo menos {{.Min}} caracteres.",
	"MEMORY_LETTER_TOO_LONG":        "A carta de amor deve ter no máximo {{.Max}} caracteres.",
	"MEMORY_PHOTOS_REQUIRED":        "Pelo menos uma foto é obrigatória.",
	"MEMORY_TOO_MANY_PHOTOS":        "Máximo de {{.Max}} fotos permitidas.",
	"MEMORY_PHOTO_CAPTION_TOO_LONG": "A legenda deve ter no máximo {{.Max}} caracteres.",
	"MEMORY_START_DATE_IN_FUTURE":   "A data de início não pode ser no futuro.",
	"MEMORY_INVALID_MUSIC_URL":      "A URL do YouTube deve ser válida.",
	"MEMORY_INVALID_SLUG_SOURCE":    "O título da página não gera um endereço válido.",
	"MEMORY_DRAFT_PAYLOAD_INVALID":  "Não foi possível ler o rascunho salvo.",

	"CUSTOMER_NAME_INVALID":  "O nome deve conter de 2 a 100 letras.",
	"CUSTOMER_EMAIL_INVALID": "O email deve ser válido.",

	"SLUG_ALLOCATION_EXHAUSTED": "Este nome de página está muito popular. Tente outro título.",
	"MEMORY_INVALID_TRANSITION": "O pagamento desta página já foi concluído.",

	"PHOTO_UNSUPPORTED_MEDIA_TYPE": "As fotos devem ser JPG, PNG, GIF ou WebP.",
	"PHOTO_TOO_LARGE":              "As fotos devem ter no máximo {{.MaxMiB}} MiB.",
	"PHOTO_REFERENCE_UNKNOWN":      "Uma das fotos não foi enviada corretamente.",
	"SIGNED_URL_INVALID":           "Este link de foto expirou. Recarregue a página.",

	"PAYMENT_GATEWAY_UNAVAILABLE": "O provedor de pagamento está indisponível. Tente novamente.",
	"PAYMENT_GATEWAY_REJECTED":    "O provedor de pagamento rejeitou a solicitação.",

	"NOT_FOUND":         "Página não encontrada.",
	"SLUG_CONFLICT":     "Este nome de página já está em uso.",
	"PERSISTENCE_ERROR": "Não foi possível salvar a página. Tente novamente.",

	"REQUEST_BODY_INVALID": "Não foi possível ler a solicitação.",
	"RATE_LIMITED":         "Muitas solicitações. Aguarde um momento.",
	"UNAUTHORIZED": "Não autorizado.",
}
