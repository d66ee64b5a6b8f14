package notify

import (
	"fmt"

	"github.com/GTDGit/event_marketplace_api/internal/models"
)

// TemplateKey enumerates every outbound message.
type TemplateKey string

const (
	OTPMessage             TemplateKey = "otpMessage"
	ContactLimitWarning    TemplateKey = "contactLimitWarning"
	ContactLimitReached    TemplateKey = "contactLimitReached"
	BookingLimitWarning    TemplateKey = "bookingLimitWarning"
	BookingLimitReached    TemplateKey = "bookingLimitReached"
	SupplierUnlocked       TemplateKey = "supplierUnlocked"
	ContactRequestAccepted TemplateKey = "contactRequestAccepted"
	ContactRequestRejected TemplateKey = "contactRequestRejected"
	ClientRequestAccepted  TemplateKey = "clientRequestAccepted"
	ClientRequestRejected  TemplateKey = "clientRequestRejected"
	SubscriptionCreated    TemplateKey = "subscriptionCreated"
	SubscriptionExpiring   TemplateKey = "subscriptionExpiring"
	SubscriptionRenewed    TemplateKey = "subscriptionRenewed"
	SubscriptionExpired    TemplateKey = "subscriptionExpired"
	SubscriptionCancelled  TemplateKey = "subscriptionCancelled"
	SubscriptionExtended   TemplateKey = "subscriptionExtended"
	BookingCreatedSupplier TemplateKey = "bookingCreatedSupplier"
	BookingStatusChanged   TemplateKey = "bookingStatusChanged"
	JoinRequestApproved    TemplateKey = "joinRequestApproved"
	JoinRequestRejected    TemplateKey = "joinRequestRejected"
)

type template struct {
	arity int
	text  map[models.Language]string
}

// templates is keyed by (key, language); arity is the number of %v verbs.
var templates = map[TemplateKey]template{
	OTPMessage: {2, map[models.Language]string{
		models.LangArabic:  "رمز التحقق الخاص بك هو: %v. صالح لمدة %v دقائق.",
		models.LangEnglish: "Your verification code is: %v. Valid for %v minutes.",
	}},
	ContactLimitWarning: {1, map[models.Language]string{
		models.LangArabic:  "تنبيه: باقي لك %v اتصال فقط قبل الوصول للحد المسموح. يرجى الاشتراك لمواصلة استقبال الاتصالات.",
		models.LangEnglish: "Warning: You have %v contacts remaining before reaching your limit. Please subscribe to continue receiving contacts.",
	}},
	ContactLimitReached: {1, map[models.Language]string{
		models.LangArabic:  "تم الوصول لحد الاتصالات (%v). تم إيقاف الحساب مؤقتًا. يرجى الاشتراك لمواصلة العمل.",
		models.LangEnglish: "Contact limit reached (%v). Account temporarily suspended. Please subscribe to continue.",
	}},
	BookingLimitWarning: {2, map[models.Language]string{
		models.LangArabic:  "تنبيه: اقتربت من الحد المجاني للحجوزات (%v من %v)",
		models.LangEnglish: "Warning: Approaching free booking limit (%v of %v)",
	}},
	BookingLimitReached: {1, map[models.Language]string{
		models.LangArabic:  "تنبيه أخير: وصلت إلى الحد المجاني للحجوزات (%v). تم إيقاف الحساب مؤقتًا",
		models.LangEnglish: "Final warning: Free booking limit (%v) reached. Account temporarily locked",
	}},
	SupplierUnlocked: {0, map[models.Language]string{
		models.LangArabic:  "تم تفعيل حسابك بنجاح",
		models.LangEnglish: "Your account has been activated successfully",
	}},
	ContactRequestAccepted: {2, map[models.Language]string{
		models.LangArabic:  "تم قبول طلب التواصل من %v لخدمة %v. يمكنك الآن التواصل مباشرة مع العميل.",
		models.LangEnglish: "Contact request accepted from %v for service %v. You can now contact the client directly.",
	}},
	ContactRequestRejected: {2, map[models.Language]string{
		models.LangArabic:  "تم رفض طلب التواصل من %v لخدمة %v.",
		models.LangEnglish: "Contact request rejected from %v for service %v.",
	}},
	ClientRequestAccepted: {2, map[models.Language]string{
		models.LangArabic:  "وافق %v على طلب التواصل الخاص بك لخدمة %v. يمكنك الآن المحادثة معه مباشرة.",
		models.LangEnglish: "%v accepted your contact request for %v. You can now chat with them directly.",
	}},
	ClientRequestRejected: {2, map[models.Language]string{
		models.LangArabic:  "تم رفض طلب التواصل الخاص بك من %v لخدمة %v.",
		models.LangEnglish: "Your contact request to %v for %v was declined.",
	}},
	SubscriptionCreated: {1, map[models.Language]string{
		models.LangArabic:  "تم تفعيل اشتراك %v بنجاح",
		models.LangEnglish: "Your %v subscription is now active",
	}},
	SubscriptionExpiring: {1, map[models.Language]string{
		models.LangArabic:  "تنبيه: سينتهي اشتراكك خلال %v أيام",
		models.LangEnglish: "Alert: Your subscription expires in %v days",
	}},
	SubscriptionRenewed: {0, map[models.Language]string{
		models.LangArabic:  "تم تجديد اشتراكك تلقائياً",
		models.LangEnglish: "Your subscription has been automatically renewed",
	}},
	SubscriptionExpired: {0, map[models.Language]string{
		models.LangArabic:  "انتهى اشتراكك. يرجى التجديد للاستمرار",
		models.LangEnglish: "Your subscription has expired. Please renew to continue",
	}},
	SubscriptionCancelled: {0, map[models.Language]string{
		models.LangArabic:  "تم إلغاء اشتراكك وإيقاف الحساب مؤقتًا",
		models.LangEnglish: "Your subscription was cancelled and your account is paused",
	}},
	SubscriptionExtended: {1, map[models.Language]string{
		models.LangArabic:  "تم تمديد اشتراكك لمدة %v يوم",
		models.LangEnglish: "Your subscription was extended by %v days",
	}},
	BookingCreatedSupplier: {2, map[models.Language]string{
		models.LangArabic:  "حجز جديد لخدمة %v بتاريخ %v",
		models.LangEnglish: "New booking for %v on %v",
	}},
	BookingStatusChanged: {2, map[models.Language]string{
		models.LangArabic:  "تم تحديث حالة حجزك لخدمة %v إلى: %v",
		models.LangEnglish: "Your booking for %v is now %v",
	}},
	JoinRequestApproved: {1, map[models.Language]string{
		models.LangArabic:  "مرحباً %v، تمت الموافقة على طلب انضمامك كمزود خدمة. يمكنك الآن تسجيل الدخول",
		models.LangEnglish: "Hi %v, your supplier application was approved. You can now sign in",
	}},
	JoinRequestRejected: {0, map[models.Language]string{
		models.LangArabic:  "نعتذر، لم تتم الموافقة على طلب انضمامك كمزود خدمة",
		models.LangEnglish: "Sorry, your supplier application was not approved",
	}},
}

// Render formats key in lang with args. Unknown languages fall back to
// Arabic; an argument count that does not match the template is an error.
func Render(key TemplateKey, lang models.Language, args ...any) (string, error) {
	tpl, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("unknown template %q", key)
	}
	if len(args) != tpl.arity {
		return "", fmt.Errorf("template %q expects %d args, got %d", key, tpl.arity, len(args))
	}
	text, ok := tpl.text[lang.Normalize()]
	if !ok {
		text = tpl.text[models.LangArabic]
	}
	if tpl.arity == 0 {
		return text, nil
	}
	return fmt.Sprintf(text, args...), nil
}
