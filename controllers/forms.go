package controllers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"greenexchange/services"
)

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}

func parseSignupForm(r *http.Request) services.SignupInput {
	return services.SignupInput{
		Name:     formValue(r, "name"),
		Email:    formValue(r, "email"),
		Password: r.FormValue("password"),
	}
}

func parseLoginForm(r *http.Request) services.LoginInput {
	return services.LoginInput{
		Email:    formValue(r, "email"),
		Password: r.FormValue("password"),
	}
}

// parsePlantForm coerces the listing form. Field names follow the stored
// document: Adhar, State, Distric, PinCode, price.
func parsePlantForm(r *http.Request) (services.PlantInput, error) {
	in := services.PlantInput{
		State:   formValue(r, "State"),
		Distric: formValue(r, "Distric"),
		PinCode: formValue(r, "PinCode"),
	}

	if raw := formValue(r, "Adhar"); raw != "" {
		adhar, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return in, fmt.Errorf("%w: Adhar must be a number", services.ErrInvalidInput)
		}
		in.Adhar = adhar
	}

	raw := formValue(r, "price")
	if raw == "" {
		return in, fmt.Errorf("%w: price is required", services.ErrInvalidInput)
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return in, fmt.Errorf("%w: price must be a number", services.ErrInvalidInput)
	}
	in.Price = price
	return in, nil
}
