package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

func bindSearchTextParams(r *http.Request) (SearchTextParams, error) {
	var params SearchTextParams
	if err := runtime.BindQueryParameter("form", true, false, "topk", r.URL.Query(), &params.TopK); err != nil {
		return SearchTextParams{}, invalidParam("topk", err)
	}
	return params, nil
}

func bindSearchImageParams(r *http.Request) (SearchImageParams, error) {
	var params SearchImageParams
	if err := runtime.BindQueryParameter("form", true, false, "topk", r.URL.Query(), &params.TopK); err != nil {
		return SearchImageParams{}, invalidParam("topk", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "threshold", r.URL.Query(), &params.Threshold); err != nil {
		return SearchImageParams{}, invalidParam("threshold", err)
	}
	return params, nil
}

func bindInt64Path(r *http.Request, name string) (int64, error) {
	var v int64
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return 0, invalidParam(name, err)
	}
	return v, nil
}

func bindStringPath(r *http.Request, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", invalidParam(name, err)
	}
	return v, nil
}
