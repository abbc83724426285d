package session

// failureTexts is the single user-facing message shown when a turn cannot reach
// the middleware. The underlying error goes to the log only.
var failureTexts = map[string]string{
	"en": "Sorry, the request failed. Please check that the middleware (3002) and the backend service (8082) are running.",
	"zh": "抱歉,系统请求出错,请检查中间件(3002)和后端服务(8082)是否开启。",
}

// FailureText returns the failure message for locale, falling back to English.
func FailureText(locale string) string {
	if text, ok := failureTexts[locale]; ok {
		return text
	}
	return failureTexts["en"]
}
