package notifier

// Template names used by the payment flow.
const (
	TemplateCourseInfo    = "curso_info"
	TemplateCourseReceipt = "curso_pago"
)

var mailTemplates = map[string]string{
	TemplateCourseInfo: `Hola,

Gracias por tu interes en {{.curso.Name}}.

Para completar tu inscripcion realiza el pago siguiendo estas instrucciones:

{{.curso.PaymentInfo}}

Una vez confirmado el deposito recibiras tu comprobante por este medio.
`,
	TemplateCourseReceipt: `Hola {{.pago.Name}},

Recibimos tu pago al {{.curso.Name}}.

Asientos: {{.pago.Quantity}}
Subtotal: {{.subtotal}}
Comision: {{.fee}}
Total: {{.total}}

Nos vemos en el curso.
`,
}
