package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/thesisflow/core/thesis"
	"github.com/trezcool/thesisflow/core/user"
	"github.com/trezcool/thesisflow/core/workflow"
)

type thesisApi struct {
	svc      thesis.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerThesisAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := thesisApi{
		svc:      deps.ThesisSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}
	authed := ctxUserMiddleware(api.usrSvc)

	tg := g.Group("/theses", jwt, authed)
	tg.POST("", api.create)
	tg.GET("", api.query)

	dg := tg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.GET("/status-plan", api.plan)
	dg.PUT("/status", api.updateStatus)
	dg.POST("/supervision-requests", api.requestSupervision)
	dg.POST("/registration-confirmation", api.confirmRegistration, examinerMiddleware())
	dg.PUT("/billing-status", api.setBillingStatus, adminMiddleware())

	rg := g.Group("/supervision-requests", jwt, authed)
	rg.GET("", api.queryRequests)
	rg.POST("/:id/accept", api.acceptRequest)
	rg.POST("/:id/reject", api.rejectRequest)
}

// Handlers

func (api *thesisApi) ctxUser(ctx echo.Context) (user.User, error) {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context user")
	}
	return usr, nil
}

func (api *thesisApi) create(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}

	var data thesis.NewThesis
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewThesis")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	detail, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating thesis")
	}
	return ctx.JSON(http.StatusCreated, detail)
}

func (api *thesisApi) query(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}

	filter := new(thesis.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []thesis.Thesis{})
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}
	ordering := new(Ordering)
	if err := ordering.Bind(ctx, thesisOrderings); err != nil {
		return err
	}

	theses, err := api.svc.Query(ctx.Request().Context(), usr, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying theses")
	}
	if theses == nil {
		theses = []thesis.Thesis{}
	}
	return ctx.JSON(http.StatusOK, theses)
}

func (api *thesisApi) retrieve(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	detail, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting thesis")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *thesisApi) update(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}

	var data thesis.UpdateThesis
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateThesis")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	detail, err := api.svc.UpdateDetails(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating thesis")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *thesisApi) plan(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	decision, err := api.svc.Plan(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "planning thesis status")
	}
	return ctx.JSON(http.StatusOK, decision)
}

func (api *thesisApi) updateStatus(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}

	var data thesis.UpdateStatus
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	detail, err := api.svc.UpdateStatus(ctx.Request().Context(), usr, ctx.Param("id"), workflow.Status(data.Status))
	if err != nil {
		return errors.Wrap(err, "updating thesis status")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *thesisApi) requestSupervision(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}

	var data thesis.NewSupervisionRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSupervisionRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.RequestSupervision(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "requesting supervision")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *thesisApi) confirmRegistration(ctx echo.Context) error {
	th, err := api.svc.ConfirmRegistration(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "confirming registration")
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *thesisApi) setBillingStatus(ctx echo.Context) error {
	var data thesis.UpdateBillingStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBillingStatus")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	th, err := api.svc.SetBillingStatus(ctx.Request().Context(), ctx.Param("id"), thesis.BillingStatus(data.BillingStatus))
	if err != nil {
		return errors.Wrap(err, "setting billing status")
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *thesisApi) queryRequests(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}

	filter := new(thesis.RequestFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []thesis.SupervisionRequest{})
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}

	reqs, err := api.svc.QueryRequests(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying supervision requests")
	}
	if reqs == nil {
		reqs = []thesis.SupervisionRequest{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *thesisApi) acceptRequest(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	req, err := api.svc.AcceptRequest(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "accepting supervision request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *thesisApi) rejectRequest(ctx echo.Context) error {
	usr, err := api.ctxUser(ctx)
	if err != nil {
		return err
	}
	req, err := api.svc.RejectRequest(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rejecting supervision request")
	}
	return ctx.JSON(http.StatusOK, req)
}
