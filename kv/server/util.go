package server

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/pingcap/errors"
	"github.com/unrolled/render"
)

// JSONError lets callers check for just one error type
type JSONError struct {
	Err error
}

func (e JSONError) Error() string {
	return e.Err.Error()
}

// readJSONRespondError decodes body into data. A body which cannot be read is answered with 500, one which is not
// valid JSON for data with 400; either way the error is returned and the caller must not write another response.
func readJSONRespondError(rd *render.Render, w http.ResponseWriter, body io.ReadCloser, data interface{}) error {
	b, err := ioutil.ReadAll(body)
	body.Close()
	if err != nil {
		rd.JSON(w, http.StatusInternalServerError, err.Error())
		return errors.Trace(err)
	}
	if err = json.Unmarshal(b, data); err != nil {
		rd.JSON(w, http.StatusBadRequest, err.Error())
		return JSONError{Err: err}
	}
	return nil
}
