package notifxses

import (
	"net/http"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
)

var sesErrors = errx.NewRegistry("NOTIFX_SES")

var ErrSendFailed = sesErrors.Register("SEND_FAILED", errx.TypeExternal, http.StatusBadGateway, "SES send email failed")
