package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/backyard/apierror"
)

const (
	MsgMalformedJSON = "JSON parse error."
	MsgIncorrectType = "Incorrect type."
	MsgInvalidID     = "Invalid id."
)

// bindJSON decodes the request body into dest. Members dest does not
// declare are rejected together in one error.
func bindJSON(c echo.Context, dest any) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(body, &members); err != nil {
		return apierror.Validation(MsgMalformedJSON)
	}

	allowed := jsonFields(reflect.TypeOf(dest))
	var unexpected []string
	for name := range members {
		if !allowed[name] {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return apierror.Field("detail", "Unexpected fields: "+strings.Join(unexpected, ", "))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return apierror.Field(typeErr.Field, MsgIncorrectType)
		}
		return apierror.Validation(MsgMalformedJSON)
	}
	return nil
}

// jsonFields lists the JSON member names of struct type t.
func jsonFields(t reflect.Type) map[string]bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	fields := make(map[string]bool)
	if t.Kind() != reflect.Struct {
		return fields
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = field.Name
		}
		fields[name] = true
	}
	return fields
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apierror.NotFound(MsgInvalidID).WithStatus(http.StatusNotFound)
	}
	return uint(id), nil
}
