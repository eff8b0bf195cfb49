package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"cadastro/internal/backup"
	"cadastro/internal/core"
	applog "cadastro/internal/log"
	"cadastro/internal/services"
)

// User-facing messages.
const (
	msgSaved          = "Cliente salvo com sucesso!"
	msgBackupDone     = "Backup realizado com sucesso!"
	msgReportDone     = "Relatório CSV gerado com sucesso!"
	msgNoBackupData   = "Não há dados para fazer backup!"
	msgNoReportData   = "Não há clientes para gerar relatório!"
	msgSelectBackup   = "Selecione um arquivo de backup!"
	msgInvalidBackup  = "Arquivo de backup inválido!"
	msgRestoreFailed  = "Erro ao restaurar backup"
	msgNotFound       = "Cliente não encontrado"
	msgNothingPending = "Nenhuma ação aguardando confirmação"
	msgCancelled      = "Operação cancelada"
	msgNotLoaded      = "Dados ainda não carregados"
	msgBadRequest     = "Formato da requisição inválido"
	msgBadFilter      = "Filtro inválido"
	msgBadKind        = "Tipo de série inválido: use count ou revenue"
	msgTooLarge       = "Arquivo muito grande"
	msgInternal       = "Erro interno, tente novamente"
	msgNoBackupLog    = "Histórico de backups disponível apenas com o banco SQLite"
)

var validationMessages = []struct {
	err error
	msg string
}{
	{core.ErrEmptyName, "Informe o nome do cliente"},
	{core.ErrNameTooLong, "O nome deve ter no máximo 200 caracteres"},
	{core.ErrEmptyService, "Informe o serviço"},
	{core.ErrInvalidDate, "Data inválida"},
	{core.ErrInvalidAmount, "Valor inválido"},
}

func validationMessage(err error) string {
	for _, v := range validationMessages {
		if errors.Is(err, v.err) {
			return v.msg
		}
	}
	return "Dados inválidos"
}

// errorResponse maps a service error to a status and a notification.
// emptyMsg is the warning shown when there are no records to act on.
func errorResponse(ctx context.Context, err error, emptyMsg string) *ResponseBuilder {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return ErrorResponse(http.StatusRequestEntityTooLarge, msgTooLarge)
	case errors.Is(err, errInvalidFilter):
		return BadRequestError(msgBadFilter)
	case errors.Is(err, errUnreadableBody):
		return BadRequestError(msgBadRequest)
	case errors.Is(err, services.ErrInvalidRecord):
		return UnprocessableEntityError(validationMessage(err))
	case errors.Is(err, services.ErrRecordNotFound):
		return NotFoundError(msgNotFound)
	case errors.Is(err, services.ErrNothingPending):
		return WarningResponse(http.StatusConflict, msgNothingPending)
	case errors.Is(err, services.ErrNotLoaded):
		return ErrorResponse(http.StatusServiceUnavailable, msgNotLoaded)
	case errors.Is(err, backup.ErrMissingSelection):
		return WarningResponse(http.StatusBadRequest, msgSelectBackup)
	case errors.Is(err, backup.ErrMalformedDocument):
		return BadRequestError(msgInvalidBackup)
	case errors.Is(err, backup.ErrInvalidSchema):
		b := NewResponse().
			Status(http.StatusUnprocessableEntity).
			TriggerErrorNotification(msgInvalidBackup)
		return b.JSON(ErrorBody{Error: msgRestoreFailed, Details: strings.Split(err.Error(), "\n")})
	case errors.Is(err, backup.ErrEmptyDataset):
		return WarningResponse(http.StatusUnprocessableEntity, emptyMsg)
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentHTTP).
		ErrorContext(ctx, "Request failed", applog.FieldError, err.Error())
	return InternalServerError(msgInternal)
}
