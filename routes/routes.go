// routes/routes.go
package routes

import (
	"net/http"

	"greenexchange/controllers"
	"greenexchange/middleware"
	"greenexchange/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, userController *controllers.UserController, treeController *controllers.TreeController, certificateController *controllers.CertificateController, pageController *controllers.PageController, uploadDir string, metrics *utils.Metrics) {
	protected := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireSession(h)
	}

	// Marketplace routes; /trees/new must precede /trees/{id}
	router.HandleFunc("/", treeController.Index).Methods("GET")
	router.Handle("/trees/new", protected(treeController.New)).Methods("GET")
	router.Handle("/trees", protected(treeController.Create)).Methods("POST")
	router.HandleFunc("/trees/{id}", treeController.Show).Methods("GET")
	router.Handle("/trees/{id}/buy", protected(treeController.Buy)).Methods("POST")
	router.Handle("/resell/{id}", protected(treeController.Resell)).Methods("POST")
	router.HandleFunc("/certificate/{id}/download", certificateController.Download).Methods("GET")

	// Auth routes
	router.HandleFunc("/signup", userController.SignupForm).Methods("GET")
	router.HandleFunc("/signup", userController.Signup).Methods("POST")
	router.HandleFunc("/login", userController.LoginForm).Methods("GET")
	router.HandleFunc("/login", userController.Login).Methods("POST")
	router.HandleFunc("/logout", userController.Logout).Methods("POST")
	router.Handle("/profile", protected(userController.Profile)).Methods("GET")

	// Informational pages
	router.HandleFunc("/stats", pageController.Stats).Methods("GET")
	router.HandleFunc("/about", pageController.About).Methods("GET")
	router.HandleFunc("/team", pageController.Team).Methods("GET")
	router.HandleFunc("/farmer-simulator", pageController.FarmerSimulator).Methods("GET")

	// Static images and metrics
	router.PathPrefix(utils.UploadURLPrefix).Handler(
		http.StripPrefix(utils.UploadURLPrefix, http.FileServer(http.Dir(uploadDir)))).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods("GET")
}
