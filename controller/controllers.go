// controller/controllers.go
package controller

import (
	"github.com/verdictd/verdict/audit"
	"github.com/verdictd/verdict/service"
)

type Controllers struct {
	Authorize   *AuthorizeController
	PolicyStore *PolicyStoreController
	Status      *StatusController
	Audit       *AuditController
}

func NewControllers(
	authorizationService service.IAuthorizationService,
	policyStoreService service.IPolicyStoreService,
	auditService audit.Service,
) *Controllers {
	return &Controllers{
		Authorize:   NewAuthorizeController(authorizationService),
		PolicyStore: NewPolicyStoreController(policyStoreService),
		Status:      NewStatusController(policyStoreService),
		Audit:       NewAuditController(auditService),
	}
}
